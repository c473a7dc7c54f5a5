package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

// IdempotencyKeyHeader lets a client retry a booking without creating a second one.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 200

// PublicHandler serves the unauthenticated booking pages: availability and booking.
type PublicHandler struct {
	engine *availability.Engine
	svc    *lifecycle.Service
	logger *slog.Logger
	debug  bool
}

func NewPublicHandler(engine *availability.Engine, svc *lifecycle.Service, logger *slog.Logger, debug bool) *PublicHandler {
	return &PublicHandler{engine: engine, svc: svc, logger: logger, debug: debug}
}

type availabilityResponse struct {
	Success bool `json:"success"`
	availability.Result
}

type bookResponse struct {
	Success     bool              `json:"success"`
	Appointment model.Appointment `json:"appointment"`
	Replayed    bool              `json:"replayed,omitempty"`
}

func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.engine.Availability(r.Context(),
		strings.TrimSpace(q.Get("provider_id")),
		strings.TrimSpace(q.Get("start_date")),
		strings.TrimSpace(q.Get("end_date")),
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{Success: true, Result: res})
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "Idempotency-Key too long"})
		return
	}

	var req lifecycle.BookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	booked, err := h.svc.Create(r.Context(), req, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	code := http.StatusCreated
	if booked.Replayed {
		code = http.StatusOK
	}
	httpx.WriteJSON(w, code, bookResponse{Success: true, Appointment: booked.Appointment, Replayed: booked.Replayed})
}

func (h *PublicHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(h.logger, r, err)
	httpx.WriteError(w, err, h.debug)
}
