package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"tourbook/internal/customtours/cache"
	customtourserrors "tourbook/internal/customtours/errors"
	"tourbook/internal/customtours/repository"
	"tourbook/internal/events"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"
)

// fakeRequests applies the same preconditions as the Mongo repository under
// a single lock, so each method is atomic like a conditional update.
type fakeRequests struct {
	mu   sync.Mutex
	docs map[string]*model.CustomizedTourRequest
	seq  int
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{docs: make(map[string]*model.CustomizedTourRequest)}
}

func cloneRequest(r *model.CustomizedTourRequest) *model.CustomizedTourRequest {
	c := *r
	c.Languages = slices.Clone(r.Languages)
	c.Landmarks = slices.Clone(r.Landmarks)
	c.SentRequests = slices.Clone(r.SentRequests)
	c.RespondingGuides = slices.Clone(r.RespondingGuides)
	return &c
}

func (f *fakeRequests) put(r *model.CustomizedTourRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[r.ID] = cloneRequest(r)
}

func (f *fakeRequests) get(id string) *model.CustomizedTourRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneRequest(f.docs[id])
}

func (f *fakeRequests) Create(_ context.Context, req *model.CustomizedTourRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	req.ID = fmt.Sprintf("req-%d", f.seq)
	req.CreatedAt = time.Now().UTC()
	f.docs[req.ID] = cloneRequest(req)
	return nil
}

func (f *fakeRequests) FindByID(_ context.Context, id string) (*model.CustomizedTourRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, customtourserrors.ErrNotFound
	}
	return cloneRequest(doc), nil
}

func matchesFilter(r *model.CustomizedTourRequest, filter model.CustomizedTourFilter) bool {
	if filter.TravelerID != "" && r.TravelerID != filter.TravelerID {
		return false
	}
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	if filter.InvolvedGuide != "" && !slices.Contains(r.InvolvedGuides(), filter.InvolvedGuide) {
		return false
	}
	return true
}

func (f *fakeRequests) FindAll(_ context.Context, filter model.CustomizedTourFilter, limit int, offset int64) ([]*model.CustomizedTourRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.CustomizedTourRequest
	for _, doc := range f.docs {
		if matchesFilter(doc, filter) {
			out = append(out, cloneRequest(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRequests) Count(ctx context.Context, filter model.CustomizedTourFilter) (int64, error) {
	all, _ := f.FindAll(ctx, filter, 1<<30, 0)
	return int64(len(all)), nil
}

func (f *fakeRequests) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return customtourserrors.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

// update runs fn on the stored document under the lock. fn reports whether
// the precondition held.
func (f *fakeRequests) update(id string, fn func(doc *model.CustomizedTourRequest) bool) (before, after *model.CustomizedTourRequest, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil, customtourserrors.ErrConditionFailed
	}
	before = cloneRequest(doc)
	if !fn(doc) {
		return nil, nil, customtourserrors.ErrConditionFailed
	}
	doc.UpdatedAt = time.Now().UTC()
	return before, cloneRequest(doc), nil
}

func (f *fakeRequests) AddInvitation(_ context.Context, id, travelerID, guideID string, maxSent int) error {
	_, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		_, bid := d.BidBy(guideID)
		if d.TravelerID != travelerID || d.Status != model.StatusPending || d.IsInvited(guideID) || bid {
			return false
		}
		if maxSent > 0 && len(d.SentRequests) >= maxSent {
			return false
		}
		d.SentRequests = append(d.SentRequests, guideID)
		return true
	})
	return err
}

func (f *fakeRequests) RemoveInvitation(_ context.Context, id, travelerID, guideID string) error {
	_, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		if d.TravelerID != travelerID || d.Status != model.StatusPending || !d.IsInvited(guideID) {
			return false
		}
		d.SentRequests = slices.DeleteFunc(d.SentRequests, func(g string) bool { return g == guideID })
		return true
	})
	return err
}

func (f *fakeRequests) AddBid(_ context.Context, id string, bid model.GuideBid) error {
	_, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		if _, ok := d.BidBy(bid.GuideID); ok || d.Status != model.StatusPending || d.AcceptedGuide != "" {
			return false
		}
		d.RespondingGuides = append(d.RespondingGuides, bid)
		return true
	})
	return err
}

func (f *fakeRequests) RejectBid(_ context.Context, id, travelerID, guideID string) error {
	_, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		if _, ok := d.BidBy(guideID); !ok || d.TravelerID != travelerID || d.Status != model.StatusPending {
			return false
		}
		d.RespondingGuides = slices.DeleteFunc(d.RespondingGuides, func(b model.GuideBid) bool { return b.GuideID == guideID })
		d.SentRequests = slices.DeleteFunc(d.SentRequests, func(g string) bool { return g == guideID })
		return true
	})
	return err
}

func (f *fakeRequests) AcceptBid(_ context.Context, id, travelerID string, bid model.GuideBid) (*model.CustomizedTourRequest, error) {
	before, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		current, ok := d.BidBy(bid.GuideID)
		if !ok || current.Price != bid.Price || d.TravelerID != travelerID || d.Status != model.StatusPending {
			return false
		}
		d.Status = model.StatusConfirmed
		d.AcceptedGuide = bid.GuideID
		d.Price = bid.Price
		d.PaymentStatus = model.PaymentPending
		d.RespondingGuides = nil
		return true
	})
	return before, err
}

func (f *fakeRequests) Cancel(_ context.Context, id, travelerID string, confirmedSince time.Time) (*model.CustomizedTourRequest, error) {
	before, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		if travelerID != "" && d.TravelerID != travelerID {
			return false
		}
		ok := d.Status == model.StatusPending ||
			(d.Status == model.StatusConfirmed && d.CreatedAt.After(confirmedSince))
		if !ok {
			return false
		}
		now := time.Now().UTC()
		d.Status = model.StatusCancelled
		d.RespondingGuides = nil
		d.CancelledAt = &now
		return true
	})
	return before, err
}

func (f *fakeRequests) SetCompletionFlag(_ context.Context, id string, party repository.Party, partyID string, at time.Time) (*model.CustomizedTourRequest, error) {
	_, after, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		if d.Status != model.StatusConfirmed || d.PaymentStatus != model.PaymentPaid || d.EndDate.After(at) {
			return false
		}
		switch party {
		case repository.PartyGuide:
			if d.AcceptedGuide != partyID {
				return false
			}
			d.GuideConfirmCompletion = true
		case repository.PartyUser:
			if d.TravelerID != partyID {
				return false
			}
			d.UserConfirmCompletion = true
		default:
			return false
		}
		return true
	})
	return after, err
}

func (f *fakeRequests) Complete(_ context.Context, id string, at time.Time) error {
	_, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		if d.Status != model.StatusConfirmed || !d.GuideConfirmCompletion || !d.UserConfirmCompletion {
			return false
		}
		d.Status = model.StatusCompleted
		d.CompletedAt = &at
		return true
	})
	return err
}

func (f *fakeRequests) MarkPaid(_ context.Context, id string) error {
	_, _, err := f.update(id, func(d *model.CustomizedTourRequest) bool {
		if d.Status != model.StatusConfirmed || d.AcceptedGuide == "" {
			return false
		}
		d.PaymentStatus = model.PaymentPaid
		return true
	})
	return err
}

func (f *fakeRequests) SweepExpired(_ context.Context, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.docs {
		if d.Status == model.StatusConfirmed && d.PaymentStatus == model.PaymentPaid && d.EndDate.Before(at) {
			d.Status = model.StatusCompleted
			d.CompletedAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeRequests) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type fakeGuides struct {
	mu         sync.Mutex
	guides     map[string]*model.Guide
	failRemove map[string]bool
	finds      int
}

func newFakeGuides(guides ...*model.Guide) *fakeGuides {
	f := &fakeGuides{guides: make(map[string]*model.Guide), failRemove: make(map[string]bool)}
	for _, g := range guides {
		f.guides[g.ID] = g
	}
	return f
}

func (f *fakeGuides) tourRequests(guideID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.guides[guideID].TourRequests)
}

func (f *fakeGuides) FindByID(_ context.Context, id string) (*model.Guide, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guides[id]
	if !ok {
		return nil, customtourserrors.ErrGuideNotFound
	}
	c := *g
	return &c, nil
}

func (f *fakeGuides) eligible(languages []string, governorate string, ascending bool) []*model.Guide {
	query := &model.CustomizedTourRequest{Governorate: governorate, Languages: languages}
	var out []*model.Guide
	for _, g := range f.guides {
		if g.Matches(query) {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].Rating < out[j].Rating
		}
		return out[i].Rating > out[j].Rating
	})
	return out
}

func (f *fakeGuides) FindEligible(_ context.Context, languages []string, governorate string, ascending bool, limit int, offset int64) ([]*model.Guide, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	out := f.eligible(languages, governorate, ascending)
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeGuides) CountEligible(_ context.Context, languages []string, governorate string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.eligible(languages, governorate, false))), nil
}

func (f *fakeGuides) AddTourRequest(_ context.Context, guideID, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guides[guideID]
	if !ok {
		return customtourserrors.ErrGuideNotFound
	}
	if !slices.Contains(g.TourRequests, requestID) {
		g.TourRequests = append(g.TourRequests, requestID)
	}
	return nil
}

func (f *fakeGuides) RemoveTourRequest(_ context.Context, guideID, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRemove[guideID] {
		return errors.New("connection reset")
	}
	g, ok := f.guides[guideID]
	if !ok {
		return customtourserrors.ErrGuideNotFound
	}
	g.TourRequests = slices.DeleteFunc(g.TourRequests, func(id string) bool { return id == requestID })
	return nil
}

type fakeCache struct {
	mu    sync.Mutex
	pages map[string]cache.Page
}

func newFakeCache() *fakeCache {
	return &fakeCache{pages: make(map[string]cache.Page)}
}

func (c *fakeCache) Get(_ context.Context, q cache.Query) (cache.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[q.Key()]
	return p, ok
}

func (c *fakeCache) Set(_ context.Context, q cache.Query, page cache.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[q.Key()] = page
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeLines struct {
	mu        sync.Mutex
	cancelled []string
	err       error
}

func (l *fakeLines) CancelCustomizedLines(_ context.Context, requestID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	l.cancelled = append(l.cancelled, requestID)
	return 1, nil
}

func (l *fakeLines) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.cancelled)
}
