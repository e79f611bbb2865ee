package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	webpush    *webpush.Options
	log        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d *dispatch.Dispatcher, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	return &Handler{
		dispatcher: d,
		webpush:    webpushOptions,
		log:        log,
	}
}
