package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// DepartureRepo provides data access to the departures table and to
// the seat rows created alongside a departure. The booking core treats
// departures as read-only; only the operator surface creates them.
type DepartureRepo struct {
	db *sql.DB
}

// NewDepartureRepo returns a DepartureRepo bound to the provided database.
func NewDepartureRepo(db *sql.DB) *DepartureRepo { return &DepartureRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span departures, seats and bookings.
func (r *DepartureRepo) DB() *sql.DB { return r.db }

// GetByID loads a single departure. Returns ErrDepartureNotFound when
// no row exists.
func (r *DepartureRepo) GetByID(ctx context.Context, id uint64) (*model.Departure, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, origin, destination, departs_at, price_cents, total_seats, created_at, updated_at
		 FROM departures WHERE id = ?`, id)
	var d model.Departure
	if err := row.Scan(&d.ID, &d.Origin, &d.Destination, &d.DepartsAt, &d.PriceCents, &d.TotalSeats, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDepartureNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List returns all departures ordered by departure time. Intended for
// the public browse endpoint; pagination is left to the caller's query
// parameters when the fleet grows beyond a single page.
func (r *DepartureRepo) List(ctx context.Context) ([]model.Departure, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, origin, destination, departs_at, price_cents, total_seats, created_at, updated_at
		 FROM departures ORDER BY departs_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Departure, 0)
	for rows.Next() {
		var d model.Departure
		if err := rows.Scan(&d.ID, &d.Origin, &d.Destination, &d.DepartsAt, &d.PriceCents, &d.TotalSeats, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateWithSeats inserts a departure together with one FREE seat row
// per seat number, all inside a single transaction so a departure can
// never exist with a partial seat map. TotalSeats is derived from the
// seat list, not trusted from the caller.
func (r *DepartureRepo) CreateWithSeats(ctx context.Context, d *model.Departure, seatNumbers []string) error {
	if len(seatNumbers) == 0 {
		return ErrInvalidRequest
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	d.TotalSeats = len(seatNumbers)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO departures (origin, destination, departs_at, price_cents, total_seats) VALUES (?, ?, ?, ?, ?)`,
		d.Origin, d.Destination, d.DepartsAt.UTC(), d.PriceCents, d.TotalSeats)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)

	query := `INSERT INTO seats (departure_id, seat_number, status) VALUES `
	args := make([]interface{}, 0, len(seatNumbers)*3)
	for i, n := range seatNumbers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, d.ID, n, model.SeatFree)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
