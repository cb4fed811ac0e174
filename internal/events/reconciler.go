package events

import (
	"context"
	"errors"
	"fmt"

	customtourserrors "tourbook/internal/customtours/errors"
	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"
)

// IndexReleaser removes a request from a guide's tour_requests.
type IndexReleaser interface {
	RemoveTourRequest(ctx context.Context, guideID, requestID string) error
}

// LineCanceller marks booking lines of a cancelled customized tour.
type LineCanceller interface {
	CancelCustomizedLines(ctx context.Context, requestID string) (int64, error)
}

// Reconciler replays the side effects of negotiation events that the
// request path applies best effort. Every step is idempotent, so redelivery
// is harmless.
type Reconciler struct {
	guides IndexReleaser
	lines  LineCanceller
	log    *logger.Logger
}

func NewReconciler(guides IndexReleaser, lines LineCanceller, log *logger.Logger) *Reconciler {
	return &Reconciler{guides: guides, lines: lines, log: log}
}

// Handle is a kafka.MessageHandler.
func (r *Reconciler) Handle(ctx context.Context, msg kafka.Message) error {
	var e Event
	if err := msg.DecodeValue(&e); err != nil {
		return err
	}

	switch e.Type {
	case TypeBidAccepted, TypeBidRejected:
		return r.release(ctx, e)
	case TypeTourCancelled:
		if err := r.release(ctx, e); err != nil {
			return err
		}
		return r.cancelLines(ctx, e)
	default:
		r.log.Debug("Event ignored by reconciler", "event_id", e.ID, "event_type", e.Type)
		return nil
	}
}

func (r *Reconciler) release(ctx context.Context, e Event) error {
	if e.RequestID == "" {
		return kafka.NewPermanentError("event without request id", nil)
	}

	var errs []error
	for _, guideID := range e.ReleasedGuides {
		err := r.guides.RemoveTourRequest(ctx, guideID, e.RequestID)
		switch {
		case err == nil:
		case errors.Is(err, customtourserrors.ErrGuideNotFound), errors.Is(err, customtourserrors.ErrInvalidID):
			r.log.Warn("Skipping release for unknown guide",
				"event_id", e.ID,
				"request_id", e.RequestID,
				"guide_id", guideID,
			)
		default:
			errs = append(errs, fmt.Errorf("guide %s: %w", guideID, err))
		}
	}

	if len(errs) > 0 {
		return kafka.NewTransientError("release guide tour requests", errors.Join(errs...))
	}

	r.log.Info("Guide tour requests reconciled",
		"event_id", e.ID,
		"event_type", e.Type,
		"request_id", e.RequestID,
		"guides", len(e.ReleasedGuides),
	)
	return nil
}

func (r *Reconciler) cancelLines(ctx context.Context, e Event) error {
	if r.lines == nil {
		return nil
	}
	n, err := r.lines.CancelCustomizedLines(ctx, e.RequestID)
	if err != nil {
		return kafka.NewTransientError("cancel booking lines", err)
	}
	if n > 0 {
		r.log.Info("Booking lines cancelled for customized tour", "request_id", e.RequestID, "bookings", n)
	}
	return nil
}

// ConsumerWorker runs a Kafka consumer as an application worker.
type ConsumerWorker struct {
	consumer *kafka.Consumer
}

func NewConsumerWorker(consumer *kafka.Consumer) *ConsumerWorker {
	return &ConsumerWorker{consumer: consumer}
}

func (w *ConsumerWorker) Name() string { return "kafka-reconciler" }

func (w *ConsumerWorker) Run(ctx context.Context) error {
	defer w.consumer.Close()
	return w.consumer.Start(ctx)
}
