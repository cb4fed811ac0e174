package handler

import (
	"github.com/julienschmidt/httprouter"

	"tourbook/pkg/auth"
)

const (
	basePath  = "/api/v1/bookings"
	toursPath = "/api/v1/tours"
)

// Router serves the bookings API and the payment webhook.
type Router struct {
	bookings *BookingHandler
	webhook  *WebhookHandler
}

func NewRouter(bookings *BookingHandler, webhook *WebhookHandler) *Router {
	return &Router{bookings: bookings, webhook: webhook}
}

func (rt *Router) RegisterRoutes(router *httprouter.Router) {
	h := rt.bookings
	g := h.guard

	router.POST(basePath+"/checkout-session/:sourceId", g.Require(h.CreateCheckoutSession, auth.RoleUser))
	router.GET(basePath, g.Require(h.List, auth.RoleUser, auth.RoleGuide, auth.RoleAdmin))
	router.GET(basePath+"/id/:id", g.Require(h.GetByID, auth.RoleUser, auth.RoleGuide, auth.RoleAdmin))
	if h.manualConfirmation {
		router.GET(basePath+"/create", h.ConfirmSession)
	}

	router.GET(toursPath+"/:id/availability", h.Availability)
}

func (rt *Router) RegisterWebhooks(router *httprouter.Router) {
	router.POST(WebhookPath, rt.webhook.Handle)
}

func (rt *Router) WebhookPaths() []string {
	return []string{WebhookPath}
}
