package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"tourbook/internal/customtours/cache"
	customtourserrors "tourbook/internal/customtours/errors"
	"tourbook/internal/customtours/repository"
	"tourbook/internal/customtours/validator"
	"tourbook/internal/events"
	"tourbook/pkg/auth"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/locale"
	"tourbook/pkg/model"
	"tourbook/pkg/sanitizer"
)

type CustomizedTourService interface {
	Create(ctx context.Context, caller auth.Identity, in *model.CustomizedTourInput) (*model.CustomizedTourRequest, error)
	ListMine(ctx context.Context, caller auth.Identity, status model.CustomizedTourStatus, limit int, offset int64) ([]*model.CustomizedTourRequest, int64, error)
	GetMine(ctx context.Context, caller auth.Identity, id string) (*model.CustomizedTourRequest, error)
	ListCancelled(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.CustomizedTourRequest, int64, error)
	ListGuideRequests(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.CustomizedTourRequest, int64, error)
	GetByID(ctx context.Context, caller auth.Identity, id string) (*model.CustomizedTourRequest, error)
	Delete(ctx context.Context, caller auth.Identity, id string) error

	FindEligibleGuides(ctx context.Context, caller auth.Identity, id string, ascending bool, limit int, offset int64) ([]*model.Guide, int64, error)

	SendInvitation(ctx context.Context, caller auth.Identity, id, guideID string) (*model.CustomizedTourRequest, error)
	CancelInvitation(ctx context.Context, caller auth.Identity, id, guideID string) (*model.CustomizedTourRequest, error)
	SubmitBid(ctx context.Context, caller auth.Identity, id string, in *model.BidInput) (*model.CustomizedTourRequest, error)
	RespondToBid(ctx context.Context, caller auth.Identity, id, guideID string, in *model.DecisionInput) (*model.CustomizedTourRequest, error)
	Cancel(ctx context.Context, caller auth.Identity, id string) (*model.CustomizedTourRequest, error)

	ConfirmCompletion(ctx context.Context, caller auth.Identity, id string, party repository.Party) (*model.CustomizedTourRequest, error)
	SweepExpiredConfirmed(ctx context.Context) (int64, error)
}

type customizedTourService struct {
	repo      repository.CustomizedTourRepository
	guides    repository.GuideRepository
	validator *validator.CustomizedTourValidator
	cache     cache.GuideCache
	publisher events.Publisher
	lines     events.LineCanceller
	cfg       *config.Config
	now       func() time.Time
}

func NewCustomizedTourService(
	repo repository.CustomizedTourRepository,
	guides repository.GuideRepository,
	validator *validator.CustomizedTourValidator,
	guideCache cache.GuideCache,
	publisher events.Publisher,
	lines events.LineCanceller,
	cfg *config.Config,
) CustomizedTourService {
	return &customizedTourService{
		repo:      repo,
		guides:    guides,
		validator: validator,
		cache:     guideCache,
		publisher: publisher,
		lines:     lines,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *customizedTourService) Create(ctx context.Context, caller auth.Identity, in *model.CustomizedTourInput) (*model.CustomizedTourRequest, error) {
	if !caller.IsUser() {
		return nil, apperrors.Forbidden("Only travelers can create customized tours")
	}

	s.sanitize(in)
	if err := s.validator.ValidateRequest(in, locale.CalendarDay(s.now())); err != nil {
		s.cfg.Log.Warn("Customized tour validation failed",
			"traveler_id", caller.UserID,
			"error", err,
		)
		return nil, validationError("Customized tour validation failed", err)
	}

	start, _ := model.ParseDay(in.StartDate)
	end, _ := model.ParseDay(in.EndDate)
	req := &model.CustomizedTourRequest{
		TravelerID:    caller.UserID,
		Governorate:   in.Governorate,
		Languages:     in.Languages,
		GroupSize:     in.GroupSize,
		Landmarks:     in.Landmarks,
		StartDate:     start,
		EndDate:       end,
		Note:          in.Note,
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentPending,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.cfg.Log.Error("Failed to create customized tour",
			"traveler_id", caller.UserID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create customized tour", err)
	}

	s.cfg.Log.Info("Customized tour created",
		"request_id", req.ID,
		"traveler_id", req.TravelerID,
		"governorate", req.Governorate,
		"languages", req.Languages,
	)
	return req, nil
}

func (s *customizedTourService) sanitize(in *model.CustomizedTourInput) {
	in.Governorate = sanitizer.NormalizeKey(in.Governorate)
	in.Languages = sanitizer.NormalizeKeys(in.Languages)
	in.Landmarks = sanitizer.NormalizeNames(in.Landmarks)
	in.Note = sanitizer.NormalizeText(in.Note)
	in.StartDate = sanitizer.TrimAndNormalize(in.StartDate)
	in.EndDate = sanitizer.TrimAndNormalize(in.EndDate)
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

// translate maps repository errors to application errors. AppErrors pass
// through unchanged.
func (s *customizedTourService) translate(err error, op, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, customtourserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Customized tour", id)
	case errors.Is(err, customtourserrors.ErrGuideNotFound):
		return apperrors.NotFound("Guide")
	case errors.Is(err, customtourserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid ID format")
	}
	s.cfg.Log.Error("Customized tour operation failed",
		"operation", op,
		"request_id", id,
		"error", err,
	)
	return apperrors.Internal(fmt.Sprintf("Failed to %s", op), err)
}

func (s *customizedTourService) load(ctx context.Context, id string) (*model.CustomizedTourRequest, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Customized tour ID cannot be empty")
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "load customized tour", id)
	}
	return req, nil
}

func (s *customizedTourService) loadGuide(ctx context.Context, guideID, requestID string) (*model.Guide, error) {
	guide, err := s.guides.FindByID(ctx, guideID)
	if err != nil {
		return nil, s.translate(err, "load guide", requestID)
	}
	return guide, nil
}

// reexplain is called after a conditional update missed. It reloads the
// request and lets check name the precondition that no longer holds.
func (s *customizedTourService) reexplain(ctx context.Context, id string, check func(*model.CustomizedTourRequest) error) error {
	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := check(req); err != nil {
		return err
	}
	return apperrors.Conflict("Customized tour was modified concurrently, please retry")
}

func requireOwner(caller auth.Identity, req *model.CustomizedTourRequest) error {
	if req.TravelerID != caller.UserID {
		return apperrors.Forbidden("You do not own this customized tour")
	}
	return nil
}

func requirePending(req *model.CustomizedTourRequest) error {
	if req.Status != model.StatusPending {
		return apperrors.Conflict(fmt.Sprintf("Customized tour is %s and no longer open for negotiation", req.Status)).
			WithReason(apperrors.ReasonRequestClosed)
	}
	return nil
}

func ineligible(guideID string) error {
	return apperrors.Forbidden("Guide does not speak the requested languages or does not cover the governorate").
		WithReason(apperrors.ReasonIneligibleGuide).
		WithDetails(map[string]any{"guide_id": guideID})
}

func (s *customizedTourService) reload(ctx context.Context, id string) (*model.CustomizedTourRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "reload customized tour", id)
	}
	return req, nil
}

// list runs count and find concurrently.
func (s *customizedTourService) list(ctx context.Context, filter model.CustomizedTourFilter, limit int, offset int64) ([]*model.CustomizedTourRequest, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var requests []*model.CustomizedTourRequest
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		requests, errFind = s.repo.FindAll(ctx, filter, limit, offset)
	}()
	wg.Wait()

	if err := errors.Join(errCount, errFind); err != nil {
		s.cfg.Log.Error("Failed to list customized tours",
			"traveler_id", filter.TravelerID,
			"guide_id", filter.InvolvedGuide,
			"status", filter.Status,
			"error", err,
		)
		return nil, 0, apperrors.Internal("Failed to retrieve customized tours", err)
	}
	return requests, count, nil
}

func (s *customizedTourService) ListMine(ctx context.Context, caller auth.Identity, status model.CustomizedTourStatus, limit int, offset int64) ([]*model.CustomizedTourRequest, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("Unknown status %q", status))
	}
	return s.list(ctx, model.CustomizedTourFilter{TravelerID: caller.UserID, Status: status}, limit, offset)
}

func (s *customizedTourService) GetMine(ctx context.Context, caller auth.Identity, id string) (*model.CustomizedTourRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TravelerID != caller.UserID {
		return nil, apperrors.NotFoundWithID("Customized tour", id)
	}
	return req, nil
}

func (s *customizedTourService) ListCancelled(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.CustomizedTourRequest, int64, error) {
	filter := model.CustomizedTourFilter{Status: model.StatusCancelled}
	if !caller.IsAdmin() {
		filter.TravelerID = caller.UserID
	}
	return s.list(ctx, filter, limit, offset)
}

// ListGuideRequests is computed from the requests themselves, not from the
// guide's tour_requests index.
func (s *customizedTourService) ListGuideRequests(ctx context.Context, caller auth.Identity, limit int, offset int64) ([]*model.CustomizedTourRequest, int64, error) {
	if !caller.IsGuide() {
		return nil, 0, apperrors.Forbidden("Only guides have tour requests")
	}
	return s.list(ctx, model.CustomizedTourFilter{InvolvedGuide: caller.UserID, Status: model.StatusPending}, limit, offset)
}

func (s *customizedTourService) GetByID(ctx context.Context, caller auth.Identity, id string) (*model.CustomizedTourRequest, error) {
	if !caller.IsAdmin() && !caller.IsGuide() {
		return nil, apperrors.Forbidden("Only guides and admins can view customized tours by ID")
	}
	return s.load(ctx, id)
}

func (s *customizedTourService) Delete(ctx context.Context, caller auth.Identity, id string) error {
	if !caller.IsAdmin() {
		return apperrors.Forbidden("Only admins can delete customized tours")
	}

	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, "delete customized tour", id)
	}

	s.cfg.Log.Info("Customized tour deleted", "request_id", id, "admin_id", caller.UserID)

	e := events.New(events.TypeTourCancelled)
	e.RequestID = id
	e.TravelerID = req.TravelerID
	e.ReleasedGuides = closedGuides(req)
	s.releaseGuides(ctx, e)
	return nil
}

func (s *customizedTourService) FindEligibleGuides(ctx context.Context, caller auth.Identity, id string, ascending bool, limit int, offset int64) ([]*model.Guide, int64, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if !caller.IsAdmin() {
		if err := requireOwner(caller, req); err != nil {
			return nil, 0, err
		}
	}
	if req.Status != model.StatusPending {
		return nil, 0, apperrors.NotFound("Pending customized tour")
	}

	q := cache.Query{
		Governorate: req.Governorate,
		Languages:   req.Languages,
		Ascending:   ascending,
		Limit:       config.NormalizePaginationLimit(limit),
		Offset:      config.NormalizeOffset(offset),
	}
	if page, ok := s.cache.Get(ctx, q); ok {
		return page.Guides, page.Total, nil
	}

	var total int64
	var guides []*model.Guide
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		total, errCount = s.guides.CountEligible(ctx, q.Languages, q.Governorate)
	}()
	go func() {
		defer wg.Done()
		guides, errFind = s.guides.FindEligible(ctx, q.Languages, q.Governorate, q.Ascending, q.Limit, q.Offset)
	}()
	wg.Wait()

	if err := errors.Join(errCount, errFind); err != nil {
		s.cfg.Log.Error("Failed to find eligible guides",
			"request_id", id,
			"governorate", req.Governorate,
			"error", err,
		)
		return nil, 0, apperrors.Internal("Failed to retrieve guides", err)
	}

	s.cache.Set(ctx, q, cache.Page{Guides: guides, Total: total})
	return guides, total, nil
}

func (s *customizedTourService) invitationError(caller auth.Identity, req *model.CustomizedTourRequest, guide *model.Guide) error {
	if err := requireOwner(caller, req); err != nil {
		return err
	}
	if err := requirePending(req); err != nil {
		return err
	}
	if !guide.Matches(req) {
		return ineligible(guide.ID)
	}
	if req.IsInvited(guide.ID) {
		return apperrors.Conflict("Guide has already been invited").WithReason(apperrors.ReasonAlreadyInvited)
	}
	if _, ok := req.BidBy(guide.ID); ok {
		return apperrors.Conflict("Guide has already responded to this tour").WithReason(apperrors.ReasonAlreadyInvited)
	}
	if limit := s.cfg.MaxSentRequests; limit > 0 && len(req.SentRequests) >= limit {
		return apperrors.Conflict(fmt.Sprintf("A customized tour can invite at most %d guides", limit))
	}
	return nil
}

func (s *customizedTourService) SendInvitation(ctx context.Context, caller auth.Identity, id, guideID string) (*model.CustomizedTourRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(caller, req); err != nil {
		return nil, err
	}
	guide, err := s.loadGuide(ctx, guideID, id)
	if err != nil {
		return nil, err
	}
	if err := s.invitationError(caller, req, guide); err != nil {
		return nil, err
	}

	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.AddInvitation(ctx, id, caller.UserID, guide.ID, s.cfg.MaxSentRequests); err != nil {
			return err
		}
		return s.guides.AddTourRequest(ctx, guide.ID, id)
	})
	if errors.Is(err, customtourserrors.ErrConditionFailed) {
		return nil, s.reexplain(ctx, id, func(req *model.CustomizedTourRequest) error {
			return s.invitationError(caller, req, guide)
		})
	}
	if err != nil {
		return nil, s.translate(err, "send invitation", id)
	}

	s.cfg.Log.Info("Guide invited to customized tour",
		"request_id", id,
		"guide_id", guide.ID,
		"traveler_id", caller.UserID,
	)
	return s.reload(ctx, id)
}

func cancelInvitationError(caller auth.Identity, req *model.CustomizedTourRequest, guideID string) error {
	if err := requireOwner(caller, req); err != nil {
		return err
	}
	if err := requirePending(req); err != nil {
		return err
	}
	if !req.IsInvited(guideID) {
		return apperrors.NotFound("Invitation").WithReason(apperrors.ReasonNotInvited)
	}
	return nil
}

func (s *customizedTourService) CancelInvitation(ctx context.Context, caller auth.Identity, id, guideID string) (*model.CustomizedTourRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cancelInvitationError(caller, req, guideID); err != nil {
		return nil, err
	}

	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.RemoveInvitation(ctx, id, caller.UserID, guideID); err != nil {
			return err
		}
		err := s.guides.RemoveTourRequest(ctx, guideID, id)
		if errors.Is(err, customtourserrors.ErrGuideNotFound) {
			return nil
		}
		return err
	})
	if errors.Is(err, customtourserrors.ErrConditionFailed) {
		return nil, s.reexplain(ctx, id, func(req *model.CustomizedTourRequest) error {
			return cancelInvitationError(caller, req, guideID)
		})
	}
	if err != nil {
		return nil, s.translate(err, "cancel invitation", id)
	}

	s.cfg.Log.Info("Guide invitation withdrawn",
		"request_id", id,
		"guide_id", guideID,
		"traveler_id", caller.UserID,
	)
	return s.reload(ctx, id)
}

func bidError(req *model.CustomizedTourRequest, guide *model.Guide) error {
	if req.AcceptedGuide != "" || req.Status != model.StatusPending {
		return apperrors.Conflict("Customized tour is no longer accepting bids").WithReason(apperrors.ReasonRequestClosed)
	}
	if !guide.Matches(req) {
		return ineligible(guide.ID)
	}
	if _, ok := req.BidBy(guide.ID); ok {
		return apperrors.Conflict("You have already submitted a bid for this tour").WithReason(apperrors.ReasonDuplicateBid)
	}
	return nil
}

func (s *customizedTourService) SubmitBid(ctx context.Context, caller auth.Identity, id string, in *model.BidInput) (*model.CustomizedTourRequest, error) {
	if !caller.IsGuide() {
		return nil, apperrors.Forbidden("Only guides can bid on customized tours")
	}
	if err := s.validator.ValidateBid(in); err != nil {
		return nil, validationError("Bid validation failed", err)
	}

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	guide, err := s.loadGuide(ctx, caller.UserID, id)
	if err != nil {
		return nil, err
	}
	if err := bidError(req, guide); err != nil {
		return nil, err
	}

	bid := model.GuideBid{GuideID: guide.ID, Price: in.Price, SubmittedAt: s.now()}
	err = s.repo.AddBid(ctx, id, bid)
	if errors.Is(err, customtourserrors.ErrConditionFailed) {
		return nil, s.reexplain(ctx, id, func(req *model.CustomizedTourRequest) error {
			return bidError(req, guide)
		})
	}
	if err != nil {
		return nil, s.translate(err, "submit bid", id)
	}

	s.cfg.Log.Info("Bid submitted",
		"request_id", id,
		"guide_id", guide.ID,
		"price", in.Price,
	)
	return s.reload(ctx, id)
}

func respondError(caller auth.Identity, req *model.CustomizedTourRequest, guideID string) error {
	if err := requireOwner(caller, req); err != nil {
		return err
	}
	if err := requirePending(req); err != nil {
		return err
	}
	if _, ok := req.BidBy(guideID); !ok {
		return apperrors.NotFound("Bid").WithReason(apperrors.ReasonNoSuchBid)
	}
	return nil
}

func (s *customizedTourService) RespondToBid(ctx context.Context, caller auth.Identity, id, guideID string, in *model.DecisionInput) (*model.CustomizedTourRequest, error) {
	if err := s.validator.ValidateDecision(in); err != nil {
		return nil, validationError("Decision validation failed", err)
	}

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := respondError(caller, req, guideID); err != nil {
		return nil, err
	}
	explain := func(req *model.CustomizedTourRequest) error {
		return respondError(caller, req, guideID)
	}

	switch in.Decision {
	case model.DecisionReject:
		err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.RejectBid(ctx, id, caller.UserID, guideID); err != nil {
				return err
			}
			err := s.guides.RemoveTourRequest(ctx, guideID, id)
			if errors.Is(err, customtourserrors.ErrGuideNotFound) {
				return nil
			}
			return err
		})
		if errors.Is(err, customtourserrors.ErrConditionFailed) {
			return nil, s.reexplain(ctx, id, explain)
		}
		if err != nil {
			return nil, s.translate(err, "reject bid", id)
		}

		s.cfg.Log.Info("Bid rejected", "request_id", id, "guide_id", guideID)
		e := events.New(events.TypeBidRejected)
		e.RequestID = id
		e.TravelerID = caller.UserID
		e.GuideID = guideID
		e.ReleasedGuides = []string{guideID}
		s.publish(ctx, e)

	case model.DecisionAccept:
		bid, _ := req.BidBy(guideID)
		before, err := s.repo.AcceptBid(ctx, id, caller.UserID, bid)
		if errors.Is(err, customtourserrors.ErrConditionFailed) {
			return nil, s.reexplain(ctx, id, explain)
		}
		if err != nil {
			return nil, s.translate(err, "accept bid", id)
		}

		s.cfg.Log.Info("Bid accepted",
			"request_id", id,
			"guide_id", guideID,
			"price", bid.Price,
			"status", model.StatusConfirmed,
		)

		e := events.New(events.TypeBidAccepted)
		e.RequestID = id
		e.TravelerID = caller.UserID
		e.GuideID = guideID
		for _, g := range before.InvolvedGuides() {
			if g != guideID {
				e.ReleasedGuides = append(e.ReleasedGuides, g)
			}
		}
		s.releaseGuides(ctx, e)
	}

	return s.reload(ctx, id)
}

// releaseGuides removes the request from every released guide's index, then
// publishes e so the reconciler repeats any removal that failed here. It
// outlives the caller's cancellation: the state change is already committed.
func (s *customizedTourService) releaseGuides(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	failed := 0
	for _, guideID := range e.ReleasedGuides {
		err := s.guides.RemoveTourRequest(ctx, guideID, e.RequestID)
		if err != nil && !errors.Is(err, customtourserrors.ErrGuideNotFound) {
			failed++
			s.cfg.Log.Warn("Failed to release guide from customized tour",
				"request_id", e.RequestID,
				"guide_id", guideID,
				"error", err,
			)
		}
	}
	if failed > 0 {
		s.cfg.Log.Warn("Guide release incomplete, left to reconciler",
			"request_id", e.RequestID,
			"failed", failed,
			"total", len(e.ReleasedGuides),
		)
	}

	s.publish(ctx, e)
}

func (s *customizedTourService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.cfg.Log.Error("Failed to publish event",
			"event_id", e.ID,
			"event_type", e.Type,
			"request_id", e.RequestID,
			"error", err,
		)
	}
}

// closedGuides lists every guide to release when req is closed, the
// accepted one included.
func closedGuides(req *model.CustomizedTourRequest) []string {
	guides := req.InvolvedGuides()
	if req.AcceptedGuide != "" && !slices.Contains(guides, req.AcceptedGuide) {
		guides = append(guides, req.AcceptedGuide)
	}
	return guides
}

func cancelError(req *model.CustomizedTourRequest, now time.Time, grace time.Duration) error {
	switch req.Status {
	case model.StatusPending:
		return nil
	case model.StatusConfirmed:
		if now.Sub(req.CreatedAt) < grace {
			return nil
		}
		return apperrors.Conflict(fmt.Sprintf("Confirmed tours can only be cancelled within %s of the request", grace)).
			WithReason(apperrors.ReasonCannotCancel)
	default:
		return apperrors.Conflict(fmt.Sprintf("A %s customized tour cannot be cancelled", req.Status)).
			WithReason(apperrors.ReasonCannotCancel)
	}
}

func (s *customizedTourService) Cancel(ctx context.Context, caller auth.Identity, id string) (*model.CustomizedTourRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := caller.UserID
	if caller.IsAdmin() {
		owner = ""
	} else if err := requireOwner(caller, req); err != nil {
		return nil, err
	}

	now := s.now()
	grace := s.cfg.CancelGracePeriod
	if err := cancelError(req, now, grace); err != nil {
		return nil, err
	}

	before, err := s.repo.Cancel(ctx, id, owner, now.Add(-grace))
	if errors.Is(err, customtourserrors.ErrConditionFailed) {
		return nil, s.reexplain(ctx, id, func(req *model.CustomizedTourRequest) error {
			return cancelError(req, now, grace)
		})
	}
	if err != nil {
		return nil, s.translate(err, "cancel customized tour", id)
	}

	s.cfg.Log.Info("Customized tour cancelled",
		"request_id", id,
		"previous_status", before.Status,
		"cancelled_by", caller.UserID,
		"role", caller.Role,
	)

	e := events.New(events.TypeTourCancelled)
	e.RequestID = id
	e.TravelerID = before.TravelerID
	e.GuideID = before.AcceptedGuide
	e.ReleasedGuides = closedGuides(before)
	if before.PaymentStatus == model.PaymentPaid {
		s.cancelBookingLines(ctx, id)
	}
	s.releaseGuides(ctx, e)

	return s.reload(ctx, id)
}

// cancelBookingLines marks the booked lines of a paid request cancelled.
// Failures are left to the reconciler, which replays it from the event.
func (s *customizedTourService) cancelBookingLines(ctx context.Context, id string) {
	if s.lines == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	n, err := s.lines.CancelCustomizedLines(ctx, id)
	if err != nil {
		s.cfg.Log.Warn("Failed to cancel booking lines, left to reconciler",
			"request_id", id,
			"error", err,
		)
		return
	}
	s.cfg.Log.Info("Booking lines cancelled for customized tour", "request_id", id, "bookings", n)
}

func completionError(caller auth.Identity, req *model.CustomizedTourRequest, party repository.Party, now time.Time) error {
	switch party {
	case repository.PartyGuide:
		if !caller.IsGuide() || req.AcceptedGuide != caller.UserID {
			return apperrors.Forbidden("Only the accepted guide can confirm completion")
		}
	case repository.PartyUser:
		if req.TravelerID != caller.UserID {
			return apperrors.Forbidden("Only the traveler can confirm completion")
		}
	default:
		return apperrors.InvalidInput(fmt.Sprintf("Unknown completion party %q", party))
	}

	if req.Status == model.StatusCompleted {
		return nil
	}
	notCompletable := func(msg string) error {
		return apperrors.Conflict(msg).WithReason(apperrors.ReasonNotCompletable)
	}
	switch {
	case req.Status != model.StatusConfirmed:
		return notCompletable(fmt.Sprintf("A %s customized tour cannot be completed", req.Status))
	case req.PaymentStatus != model.PaymentPaid:
		return notCompletable("Customized tour has not been paid")
	case now.Before(req.EndDate):
		return notCompletable("Customized tour has not ended yet")
	}
	return nil
}

// ConfirmCompletion records one party's confirmation and completes the tour
// when both have confirmed. Confirming a completed tour succeeds without
// changes.
func (s *customizedTourService) ConfirmCompletion(ctx context.Context, caller auth.Identity, id string, party repository.Party) (*model.CustomizedTourRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := completionError(caller, req, party, now); err != nil {
		return nil, err
	}
	if req.Status == model.StatusCompleted {
		return req, nil
	}

	after, err := s.repo.SetCompletionFlag(ctx, id, party, caller.UserID, now)
	if errors.Is(err, customtourserrors.ErrConditionFailed) {
		latest, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest.Status == model.StatusCompleted {
			return latest, nil
		}
		if err := completionError(caller, latest, party, now); err != nil {
			return nil, err
		}
		return nil, apperrors.Conflict("Customized tour was modified concurrently, please retry")
	}
	if err != nil {
		return nil, s.translate(err, "confirm completion", id)
	}

	s.cfg.Log.Info("Completion confirmed",
		"request_id", id,
		"party", party,
		"guide_confirmed", after.GuideConfirmCompletion,
		"user_confirmed", after.UserConfirmCompletion,
	)

	if after.GuideConfirmCompletion && after.UserConfirmCompletion {
		err := s.repo.Complete(ctx, id, now)
		if err != nil && !errors.Is(err, customtourserrors.ErrConditionFailed) {
			return nil, s.translate(err, "complete customized tour", id)
		}
		if err == nil {
			s.cfg.Log.Info("Customized tour completed", "request_id", id, "status", model.StatusCompleted)
			e := events.New(events.TypeTourCompleted)
			e.RequestID = id
			e.TravelerID = after.TravelerID
			e.GuideID = after.AcceptedGuide
			s.publish(ctx, e)
		}
	}

	return s.reload(ctx, id)
}

func (s *customizedTourService) SweepExpiredConfirmed(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.repo.SweepExpired(ctx, now)
	if err != nil {
		s.cfg.Log.Error("Completion sweep failed", "error", err)
		return 0, err
	}
	s.cfg.Log.Info("Completion sweep finished", "completed", n, "cutoff", now)
	return n, nil
}
