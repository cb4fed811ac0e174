// Package handler serves the customized tour API under /api/v1/customized-tours.
//
// Collection routes sit directly under the base path (/my-requests,
// /canceled, /guide-requests, /respond/:id). Routes that address one request
// are prefixed with /id, for example:
//
//	GET   /api/v1/customized-tours/id/:id
//	PATCH /api/v1/customized-tours/id/:id/cancel
//	PATCH /api/v1/customized-tours/id/:id/respond/guide/:guideId
//
// Clients must not call /customized-tours/:id directly; that path is not
// registered.
package handler

import (
	"github.com/julienschmidt/httprouter"

	"tourbook/internal/customtours/repository"
	"tourbook/pkg/auth"
)

const basePath = "/api/v1/customized-tours"

// RegisterRoutes mounts the customized tour API. Routes addressing a single
// request live under /id/:id because httprouter cannot mix a wildcard with
// the static list segments at the same depth.
func (h *CustomizedTourHandler) RegisterRoutes(router *httprouter.Router) {
	g := h.guard

	router.POST(basePath, g.Require(h.Create, auth.RoleUser))
	router.GET(basePath+"/my-requests", g.Require(h.ListMine, auth.RoleUser))
	router.GET(basePath+"/my-requests/:id", g.Require(h.GetMine, auth.RoleUser))
	router.GET(basePath+"/canceled", g.Require(h.ListCancelled, auth.RoleUser, auth.RoleAdmin))
	router.GET(basePath+"/guide-requests", g.Require(h.ListGuideRequests, auth.RoleGuide))
	router.PATCH(basePath+"/respond/:id", g.Require(h.SubmitBid, auth.RoleGuide))

	router.GET(basePath+"/id/:id", g.Require(h.GetByID, auth.RoleGuide, auth.RoleAdmin))
	router.DELETE(basePath+"/id/:id", g.Require(h.Delete, auth.RoleAdmin))
	router.PATCH(basePath+"/id/:id/cancel", g.Require(h.Cancel, auth.RoleUser, auth.RoleAdmin))
	router.GET(basePath+"/id/:id/browse-guides", g.Require(h.BrowseGuides, auth.RoleUser, auth.RoleAdmin))
	router.PATCH(basePath+"/id/:id/guides/:guideId/send-request", g.Require(h.SendInvitation, auth.RoleUser))
	router.PATCH(basePath+"/id/:id/guides/:guideId/cancel-request", g.Require(h.CancelInvitation, auth.RoleUser))
	router.PATCH(basePath+"/id/:id/respond/guide/:guideId", g.Require(h.RespondToBid, auth.RoleUser))
	router.PATCH(basePath+"/id/:id/confirm-completion/guide", g.Require(h.confirmCompletion(repository.PartyGuide), auth.RoleGuide))
	router.PATCH(basePath+"/id/:id/confirm-completion/user", g.Require(h.confirmCompletion(repository.PartyUser), auth.RoleUser))
}
