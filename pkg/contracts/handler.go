package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// WebhookHandler serves provider callbacks. Its paths skip the client-facing
// middleware (rate limiting, idempotency keys, content-type checks).
type WebhookHandler interface {
	RegisterWebhooks(*httprouter.Router)
	WebhookPaths() []string
}

// Worker is a background loop that runs until ctx is cancelled.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}
