package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/access"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify"
)

// AppointmentHandler serves provider actions. Every route runs behind access.RequireCaller.
type AppointmentHandler struct {
	svc    *lifecycle.Service
	logger *slog.Logger
	debug  bool
}

func NewAppointmentHandler(svc *lifecycle.Service, logger *slog.Logger, debug bool) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger, debug: debug}
}

type actionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type paymentRequest struct {
	AppointmentID   string `json:"appointment_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type appointmentResponse struct {
	Success      bool              `json:"success"`
	Appointment  model.Appointment `json:"appointment"`
	Notification *notify.Result    `json:"notification,omitempty"`
}

type listResponse struct {
	Success      bool                `json:"success"`
	Appointments []model.Appointment `json:"appointments"`
	Count        int                 `json:"count"`
}

type customerResponse struct {
	Success  bool           `json:"success"`
	Customer model.Customer `json:"customer"`
}

type paymentSummary struct {
	PaymentIntentID  string `json:"payment_intent_id"`
	Status           string `json:"status"`
	AmountCents      int64  `json:"amount_cents"`
	PlatformFeeCents int64  `json:"platform_fee_cents"`
	ProviderNetCents int64  `json:"provider_net_cents"`
}

type paymentResponse struct {
	Success     bool              `json:"success"`
	Appointment model.Appointment `json:"appointment"`
	Payment     paymentSummary    `json:"payment"`
}

func caller(r *http.Request) string {
	c, _ := access.CallerFromContext(r.Context())
	return c.ProviderID
}

// Action returns the handler for one lifecycle action.
func (h *AppointmentHandler) Action(action lifecycle.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		out, err := h.svc.Apply(r.Context(), caller(r), strings.TrimSpace(req.AppointmentID), action, req.Reason)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, appointmentResponse{
			Success:      true,
			Appointment:  out.Appointment,
			Notification: out.Notification,
		})
	}
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), caller(r), strings.TrimSpace(r.URL.Query().Get("appointment_id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appointmentResponse{Success: true, Appointment: appt})
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := lifecycle.ListFilter{
		From:   strings.TrimSpace(q.Get("start_date")),
		To:     strings.TrimSpace(q.Get("end_date")),
		Status: strings.TrimSpace(q.Get("status")),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, apperr.Validation("limit must be a number"))
			return
		}
		f.Limit = n
	}
	appts, err := h.svc.List(r.Context(), caller(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Appointments: appts, Count: len(appts)})
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, updates, err := lifecycle.DecodeUpdateRequest(r.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appt, err := h.svc.Update(r.Context(), caller(r), id, updates)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appointmentResponse{Success: true, Appointment: appt})
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id := strings.TrimSpace(req.AppointmentID)
	if err := h.svc.Delete(r.Context(), caller(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": id})
}

func (h *AppointmentHandler) Payment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.ReconcilePayment(r.Context(), caller(r), strings.TrimSpace(req.AppointmentID), strings.TrimSpace(req.PaymentIntentID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, paymentResponse{
		Success:     true,
		Appointment: out.Appointment,
		Payment: paymentSummary{
			PaymentIntentID:  out.Intent.ID,
			Status:           out.Intent.Status,
			AmountCents:      out.Intent.AmountCents,
			PlatformFeeCents: out.PlatformFeeCents,
			ProviderNetCents: out.ProviderNetCents,
		},
	})
}

func (h *AppointmentHandler) Customer(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCustomer(r.Context(), caller(r), strings.TrimSpace(r.URL.Query().Get("customer_id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, customerResponse{Success: true, Customer: c})
}

func (h *AppointmentHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(h.logger, r, err)
	httpx.WriteError(w, err, h.debug)
}

// logFailure logs server-side failures loudly and client mistakes quietly.
func logFailure(logger *slog.Logger, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindDependency, apperr.KindInternal:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	default:
		logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}
