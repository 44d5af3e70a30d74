package http

import (
	"net/http"

	"smartevents/internal/delivery/http/controllers"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers groups the controllers served by NewRouter.
type Handlers struct {
	Checkout     *controllers.CheckoutController
	Registration *controllers.RegistrationController
	Event        *controllers.EventController
	Me           *controllers.MeController
}

// Middleware wraps a single route.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// NewRouter initializes the HTTP router with all application routes.
// auth guards caller-scoped routes; idempotent additionally wraps POST
// /checkout and may be nil.
func NewRouter(h Handlers, auth Middleware, idempotent Middleware) *http.ServeMux {
	mux := http.NewServeMux()
	checkout := auth(h.Checkout.Checkout)
	if idempotent != nil {
		checkout = auth(idempotent(h.Checkout.Checkout))
	}

	// Checkout
	mux.HandleFunc("POST /checkout", checkout)
	mux.HandleFunc("GET /checkout/{id}", auth(h.Checkout.GetCheckout))
	mux.HandleFunc("POST /checkout/{id}/cancel", auth(h.Checkout.CancelCheckout))

	// Registrations
	mux.HandleFunc("POST /registrations/{event_id}/cancel", auth(h.Registration.CancelRegistration))
	mux.HandleFunc("GET /events/{event_id}/availability", h.Registration.Availability)

	// Events
	mux.HandleFunc("POST /events", auth(h.Event.CreateEvent))
	mux.HandleFunc("GET /events/{event_id}", h.Event.GetEvent)
	mux.HandleFunc("POST /events/{event_id}/discount-codes", auth(h.Event.CreateDiscountCode))
	mux.HandleFunc("GET /events/{event_id}/discount-codes/{code}", h.Event.PreviewDiscount)
	mux.HandleFunc("GET /events/{event_id}/revenue", auth(h.Event.Revenue))
	mux.HandleFunc("GET /events/{event_id}/payments", auth(h.Event.ListEventPayments))

	// Me
	mux.HandleFunc("GET /me/tickets", auth(h.Me.ListMyTickets))
	mux.HandleFunc("GET /me/payments", auth(h.Me.ListMyPayments))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
