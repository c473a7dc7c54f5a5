package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/lifecycle"
)

// Register mounts the booking API on mux. requireCaller guards the provider routes;
// webhook may be nil.
func Register(mux *http.ServeMux, public *PublicHandler, appts *AppointmentHandler, webhook http.Handler, requireCaller httpx.Middleware) {
	mux.HandleFunc("GET /api/v1/public/availability", public.Availability)
	mux.HandleFunc("POST /api/v1/public/book", public.Book)

	provider := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, httpx.Chain(h, requireCaller))
	}
	provider("GET /api/v1/appointments", appts.List)
	provider("GET /api/v1/appointments/get", appts.Get)
	provider("POST /api/v1/appointments/confirm", appts.Action(lifecycle.ActionConfirm))
	provider("POST /api/v1/appointments/cancel", appts.Action(lifecycle.ActionCancel))
	provider("POST /api/v1/appointments/reschedule", appts.Action(lifecycle.ActionReschedule))
	provider("POST /api/v1/appointments/remind", appts.Action(lifecycle.ActionRemind))
	provider("POST /api/v1/appointments/start", appts.Action(lifecycle.ActionStart))
	provider("POST /api/v1/appointments/complete", appts.Action(lifecycle.ActionComplete))
	provider("POST /api/v1/appointments/no-show", appts.Action(lifecycle.ActionNoShow))
	provider("POST /api/v1/appointments/update", appts.Update)
	provider("POST /api/v1/appointments/delete", appts.Delete)
	provider("POST /api/v1/appointments/payment", appts.Payment)
	provider("GET /api/v1/customers/get", appts.Customer)

	if webhook != nil {
		mux.Handle("POST /api/v1/payments/webhooks/stripe", webhook)
	}
}
