package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// DepartureHandler serves the public browse endpoints and the minimal
// operator surface for seeding departures. Departure creation is the
// stand-in for the external schedule-management collaborator; the
// booking core itself never mutates a departure.
type DepartureHandler struct {
	Departures *repository.DepartureRepo
	Seats      *repository.SeatMapRepo
}

// NewDepartureHandler constructs a DepartureHandler. All dependencies
// must be non-nil.
func NewDepartureHandler(departures *repository.DepartureRepo, seats *repository.SeatMapRepo) *DepartureHandler {
	if departures == nil || seats == nil {
		panic("nil repository passed to NewDepartureHandler")
	}
	return &DepartureHandler{Departures: departures, Seats: seats}
}

// ListDepartures handles GET /v1/departures. Public; returns every
// departure ordered by departure time.
func (h *DepartureHandler) ListDepartures(c echo.Context) error {
	deps, err := h.Departures.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	items := make([]echo.Map, 0, len(deps))
	for _, d := range deps {
		items = append(items, echo.Map{
			"id":          d.ID,
			"origin":      d.Origin,
			"destination": d.Destination,
			"departs_at":  d.DepartsAt.UTC().Format(time.RFC3339),
			"price_cents": d.PriceCents,
			"total_seats": d.TotalSeats,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetSeatMap handles GET /v1/departures/:id/seats. It returns the
// read-only seat snapshot for the UI. The snapshot is advisory: a
// seat shown FREE here can still lose the race at reservation time,
// which is why the response is safe to cache briefly.
func (h *DepartureHandler) GetSeatMap(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid departure id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Departures.GetByID(ctx, id); err != nil {
		return respondError(c, err)
	}
	snap, err := h.Seats.Snapshot(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"departure_id": id,
		"seats":        snap,
	})
}

// CreateDeparture handles POST /v1/departures (operator only). The
// seat map may be given explicitly as seat_numbers or generated from a
// rows × seats_per_row grid with labels like "A1".."C4". The departure
// and its seat rows are created atomically.
func (h *DepartureHandler) CreateDeparture(c echo.Context) error {
	var body struct {
		Origin      string   `json:"origin"`
		Destination string   `json:"destination"`
		DepartsAt   string   `json:"departs_at"`
		PriceCents  uint32   `json:"price_cents"`
		Rows        int      `json:"rows"`
		SeatsPerRow int      `json:"seats_per_row"`
		SeatNumbers []string `json:"seat_numbers"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Origin == "" || body.Destination == "" || body.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin, destination and price_cents are required"})
	}
	departsAt, err := time.Parse(time.RFC3339, body.DepartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "departs_at must be RFC3339"})
	}

	seatNumbers := body.SeatNumbers
	if len(seatNumbers) == 0 {
		if body.Rows <= 0 || body.SeatsPerRow <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide seat_numbers or rows and seats_per_row"})
		}
		seatNumbers = gridSeatNumbers(body.Rows, body.SeatsPerRow)
	}

	d := &model.Departure{
		Origin:      body.Origin,
		Destination: body.Destination,
		DepartsAt:   departsAt.UTC(),
		PriceCents:  body.PriceCents,
	}
	if err := h.Departures.CreateWithSeats(c.Request().Context(), d, seatNumbers); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":          d.ID,
		"total_seats": d.TotalSeats,
	})
}

// gridSeatNumbers builds "A1".."A<n>", "B1".. labels for a rectangular
// bus layout. Rows beyond Z continue with AA, AB and so on.
func gridSeatNumbers(rows, perRow int) []string {
	out := make([]string, 0, rows*perRow)
	for r := 0; r < rows; r++ {
		label := rowLabel(r)
		for s := 1; s <= perRow; s++ {
			out = append(out, label+strconv.Itoa(s))
		}
	}
	return out
}

// rowLabel converts a zero-based row index to an alphabetical label
// like A, B, AA.
func rowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}
