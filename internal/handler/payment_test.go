package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/payment"
)

type fakePaymentAPI struct {
	finalized   []payment.Outcome
	finalizedID uint64
	booking     *model.Booking
	initiateErr error
}

func (f *fakePaymentAPI) Initiate(context.Context, uint64, uint64, string) (*payment.InitiateResponse, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return &payment.InitiateResponse{ProviderRef: "tx-1", RedirectURL: "https://pay.example.com/tx-1"}, nil
}

func (f *fakePaymentAPI) Finalize(_ context.Context, bookingID uint64, outcome payment.Outcome) (*model.Booking, error) {
	f.finalizedID = bookingID
	f.finalized = append(f.finalized, outcome)
	return f.booking, nil
}

func (f *fakePaymentAPI) VerifyPending(context.Context, uint64, uint64, string) (*model.Booking, error) {
	return f.booking, nil
}

func callbackContext(t *testing.T, body, signature string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/callback", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCallbackVerifiesSignatureBeforeParsing(t *testing.T) {
	verifier := payment.NewClient("http://provider", "secret", 1)
	api := &fakePaymentAPI{booking: &model.Booking{ID: 7, Status: model.PaymentCompleted}}
	h := NewPaymentHandler(api, verifier)

	body := `{"reference":"7","provider_ref":"tx-1","outcome":"succeeded"}`
	sig := payment.Sign([]byte("secret"), []byte(body))

	c, rec := callbackContext(t, body, sig)
	require.NoError(t, h.Callback(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(7), api.finalizedID)
	assert.Equal(t, []payment.Outcome{payment.OutcomeSucceeded}, api.finalized)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "COMPLETED", out["payment_status"])
}

func TestCallbackRejectsBadSignature(t *testing.T) {
	verifier := payment.NewClient("http://provider", "secret", 1)
	api := &fakePaymentAPI{booking: &model.Booking{ID: 7}}
	h := NewPaymentHandler(api, verifier)

	body := `{"reference":"7","provider_ref":"tx-1","outcome":"succeeded"}`
	forged := payment.Sign([]byte("wrong-secret"), []byte(body))

	c, rec := callbackContext(t, body, forged)
	require.NoError(t, h.Callback(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, api.finalized, "an unverified payload must never reach the reconciler")
}

func TestCallbackRejectsMissingSignature(t *testing.T) {
	verifier := payment.NewClient("http://provider", "secret", 1)
	h := NewPaymentHandler(&fakePaymentAPI{}, verifier)

	c, rec := callbackContext(t, `{"reference":"7"}`, "")
	require.NoError(t, h.Callback(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackRejectsNonNumericReference(t *testing.T) {
	verifier := payment.NewClient("http://provider", "secret", 1)
	h := NewPaymentHandler(&fakePaymentAPI{}, verifier)

	body := `{"reference":"not-a-booking","outcome":"succeeded"}`
	sig := payment.Sign([]byte("secret"), []byte(body))

	c, rec := callbackContext(t, body, sig)
	require.NoError(t, h.Callback(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayReturnsRedirectURL(t *testing.T) {
	api := &fakePaymentAPI{}
	h := NewPaymentHandler(api, payment.NewClient("http://provider", "secret", 1))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/7/pay", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Set("user_id", uint64(42))

	require.NoError(t, h.Pay(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "https://pay.example.com/tx-1", out["redirect_url"])
}

func TestPayProviderOutageMapsToBadGateway(t *testing.T) {
	api := &fakePaymentAPI{initiateErr: payment.ErrProviderUnavailable}
	h := NewPaymentHandler(api, payment.NewClient("http://provider", "secret", 1))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/7/pay", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Set("user_id", uint64(42))

	require.NoError(t, h.Pay(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
