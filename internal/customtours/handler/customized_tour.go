package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tourbook/internal/customtours/repository"
	"tourbook/internal/customtours/service"
	"tourbook/pkg/auth"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
)

type CustomizedTourHandler struct {
	service service.CustomizedTourService
	guard   *auth.Guard
	log     *logger.Logger
}

func NewCustomizedTourHandler(service service.CustomizedTourService, guard *auth.Guard, log *logger.Logger) *CustomizedTourHandler {
	return &CustomizedTourHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

// caller is set by Guard.Require on every route of this handler.
func caller(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (h *CustomizedTourHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in model.CustomizedTourInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.service.Create(r.Context(), caller(r), &in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, req)
}

func (h *CustomizedTourHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := model.CustomizedTourStatus(r.URL.Query().Get("status"))

	requests, total, err := h.service.ListMine(r.Context(), caller(r), status, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, requests, total, limit, offset)
}

func (h *CustomizedTourHandler) GetMine(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req, err := h.service.GetMine(r.Context(), caller(r), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, req)
}

func (h *CustomizedTourHandler) ListCancelled(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requests, total, err := h.service.ListCancelled(r.Context(), caller(r), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, requests, total, limit, offset)
}

func (h *CustomizedTourHandler) ListGuideRequests(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requests, total, err := h.service.ListGuideRequests(r.Context(), caller(r), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, requests, total, limit, offset)
}

func (h *CustomizedTourHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req, err := h.service.GetByID(r.Context(), caller(r), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, req)
}

func (h *CustomizedTourHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), caller(r), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// BrowseGuides lists eligible guides, best rated first. sort=rating reverses
// the order.
func (h *CustomizedTourHandler) BrowseGuides(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var ascending bool
	switch sort := r.URL.Query().Get("sort"); sort {
	case "", "-rating":
	case "rating":
		ascending = true
	default:
		httputil.WriteError(w, apperrors.InvalidInput("sort must be 'rating' or '-rating'"))
		return
	}

	guides, total, err := h.service.FindEligibleGuides(r.Context(), caller(r), ps.ByName("id"), ascending, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, guides, total, limit, offset)
}

func (h *CustomizedTourHandler) SendInvitation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req, err := h.service.SendInvitation(r.Context(), caller(r), ps.ByName("id"), ps.ByName("guideId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, req)
}

func (h *CustomizedTourHandler) CancelInvitation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req, err := h.service.CancelInvitation(r.Context(), caller(r), ps.ByName("id"), ps.ByName("guideId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, req)
}

func (h *CustomizedTourHandler) SubmitBid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in model.BidInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.service.SubmitBid(r.Context(), caller(r), ps.ByName("id"), &in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, req)
}

func (h *CustomizedTourHandler) RespondToBid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in model.DecisionInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.service.RespondToBid(r.Context(), caller(r), ps.ByName("id"), ps.ByName("guideId"), &in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, req)
}

func (h *CustomizedTourHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req, err := h.service.Cancel(r.Context(), caller(r), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, req)
}

func (h *CustomizedTourHandler) confirmCompletion(party repository.Party) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		req, err := h.service.ConfirmCompletion(r.Context(), caller(r), ps.ByName("id"), party)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		httputil.WriteSuccess(w, req)
	}
}
