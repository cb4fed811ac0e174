package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "tourbook/internal/bookings/errors"
	customtourserrors "tourbook/internal/customtours/errors"
	"tourbook/internal/events"
	"tourbook/internal/payments"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"
)

// fakeBookings keeps bookings in memory and enforces the unique payment
// reference like the Mongo index does.
type fakeBookings struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*model.Booking
}

type txKey struct{}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{byID: map[string]*model.Booking{}}
}

func (f *fakeBookings) Create(ctx context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.PaymentReference == b.PaymentReference {
			return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicatePayment, b.PaymentReference)
		}
	}
	f.seq++
	b.ID = fmt.Sprintf("65f1c0e2a1b2c3d4e5f6%04x", f.seq)
	b.CreatedAt = testNow
	cp := *b
	cp.Lines = append([]model.BookingLine(nil), b.Lines...)
	f.byID[b.ID] = &cp
	if created, ok := ctx.Value(txKey{}).(*[]string); ok {
		*created = append(*created, b.ID)
	}
	return nil
}

func (f *fakeBookings) FindByID(_ context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) FindByReference(_ context.Context, reference string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byID {
		if b.PaymentReference == reference {
			cp := *b
			return &cp, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeBookings) matching(filter model.BookingFilter) []*model.Booking {
	var out []*model.Booking
	for _, b := range f.byID {
		if filter.TravelerID != "" && b.TravelerID != filter.TravelerID {
			continue
		}
		if filter.GuideID != "" && !b.HasGuide(filter.GuideID) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out
}

func (f *fakeBookings) FindAll(_ context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.matching(filter)
	if offset >= int64(len(all)) {
		return []*model.Booking{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeBookings) Count(_ context.Context, filter model.BookingFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.matching(filter))), nil
}

func (f *fakeBookings) BookedCount(_ context.Context, tourID string, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booked := 0
	for _, b := range f.byID {
		for _, l := range b.Lines {
			if l.TourID == tourID && l.TourDate.Equal(day) && l.Status == model.LineBooked {
				booked += l.GroupSize
			}
		}
	}
	return booked, nil
}

func (f *fakeBookings) CancelCustomizedLines(_ context.Context, requestID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.byID {
		for i := range b.Lines {
			if b.Lines[i].CustomizedTourID == requestID && b.Lines[i].Status == model.LineBooked {
				b.Lines[i].Status = model.LineCancelled
				n++
			}
		}
	}
	return n, nil
}

// ExecuteTransaction drops the bookings created by fn when it fails.
func (f *fakeBookings) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	var created []string
	err := fn(context.WithValue(ctx, txKey{}, &created))
	if err != nil {
		f.mu.Lock()
		for _, id := range created {
			delete(f.byID, id)
		}
		f.mu.Unlock()
	}
	return err
}

func (f *fakeBookings) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeTours struct {
	mu         sync.Mutex
	tours      map[string]*model.Tour
	increments map[string]int
}

func newFakeTours(tours ...*model.Tour) *fakeTours {
	f := &fakeTours{tours: map[string]*model.Tour{}, increments: map[string]int{}}
	for _, t := range tours {
		f.tours[t.ID] = t
	}
	return f
}

func (f *fakeTours) FindByID(_ context.Context, id string) (*model.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tours[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrTourNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTours) IncrementBookings(_ context.Context, id string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tours[id]
	if !ok {
		return fmt.Errorf("%w: %s", bookingserrors.ErrTourNotFound, id)
	}
	t.Bookings += n
	f.increments[id] += n
	return nil
}

func (f *fakeTours) incremented(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.increments[id]
}

type fakeCarts struct {
	mu      sync.Mutex
	carts   map[string]*model.Cart
	deleted []string
}

func newFakeCarts(carts ...*model.Cart) *fakeCarts {
	f := &fakeCarts{carts: map[string]*model.Cart{}}
	for _, c := range carts {
		f.carts[c.ID] = c
	}
	return f
}

func (f *fakeCarts) FindByID(_ context.Context, id string) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrCartNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCarts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeCustomized struct {
	mu       sync.Mutex
	requests map[string]*model.CustomizedTourRequest
	paid     []string
}

func newFakeCustomized(reqs ...*model.CustomizedTourRequest) *fakeCustomized {
	f := &fakeCustomized{requests: map[string]*model.CustomizedTourRequest{}}
	for _, r := range reqs {
		f.requests[r.ID] = r
	}
	return f
}

func (f *fakeCustomized) FindByID(_ context.Context, id string) (*model.CustomizedTourRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, customtourserrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeCustomized) MarkPaid(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.Status != model.StatusConfirmed || r.AcceptedGuide == "" {
		return customtourserrors.ErrConditionFailed
	}
	r.PaymentStatus = model.PaymentPaid
	f.paid = append(f.paid, id)
	return nil
}

// fakeGateway issues sessions in memory. Sessions are unpaid until pay is
// called.
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	requests  []payments.CheckoutRequest
	sessions  map[string]*payments.Session
	createErr error
	getErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*payments.Session{}}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.requests = append(g.requests, req)
	g.seq++

	var amount int64
	for _, l := range req.Lines {
		amount += l.UnitAmount * l.Quantity
	}
	id := fmt.Sprintf("cs_test_%d", g.seq)
	s := &payments.Session{
		ID:                id,
		URL:               "https://checkout.test/" + id,
		ClientReferenceID: req.ClientReferenceID,
		PaymentStatus:     payments.StatusUnpaid,
		AmountTotal:       amount,
		Currency:          req.Currency,
		Metadata:          req.Metadata,
	}
	g.sessions[id] = s
	return s, nil
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*payments.WebhookEvent, error) {
	return nil, payments.ErrInvalidSignature
}

func (g *fakeGateway) pay(id string) *payments.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[id]
	s.PaymentStatus = payments.StatusPaid
	cp := *s
	return &cp
}

func (g *fakeGateway) created() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
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
