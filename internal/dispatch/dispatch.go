// Package dispatch routes an API operation to the one handler that owns it.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/envelope"
	"github.com/larrykluger/push-notifications-docusign/internal/identity"
)

// Payload holds the request parameters an operation may read.
type Payload struct {
	Email     string `json:"email" form:"email"`
	Password  string `json:"pw" form:"pw"`
	NotifyURL string `json:"notify_url" form:"notify_url"`
}

// Call is one decoded API request.
type Call struct {
	Op      string
	Payload Payload
	// Jar reads and writes the caller's cookies.
	Jar identity.CookieJar
}

// Handler services a single operation. Returning an envelope means the
// operation was fully serviced; returning an error means it faulted.
type Handler interface {
	Op() string
	Serve(ctx context.Context, call *Call) (envelope.Envelope, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	Name string
	Fn   func(ctx context.Context, call *Call) (envelope.Envelope, error)
}

func (h HandlerFunc) Op() string { return h.Name }

func (h HandlerFunc) Serve(ctx context.Context, call *Call) (envelope.Envelope, error) {
	return h.Fn(ctx, call)
}

// Dispatcher holds the handlers registered at startup.
type Dispatcher struct {
	handlers map[string]Handler
	order    []string
	log      *zap.Logger
}

// New registers handlers. Two handlers claiming the same operation is an error.
func New(log *zap.Logger, handlers ...Handler) (*Dispatcher, error) {
	d := &Dispatcher{handlers: make(map[string]Handler, len(handlers)), log: log}
	for _, h := range handlers {
		op := h.Op()
		if op == "" {
			return nil, errors.New("dispatch: handler with empty operation name")
		}
		if _, dup := d.handlers[op]; dup {
			return nil, fmt.Errorf("dispatch: operation %q registered twice", op)
		}
		d.handlers[op] = h
		d.order = append(d.order, op)
	}
	return d, nil
}

// Ops lists the registered operations in registration order.
func (d *Dispatcher) Ops() []string {
	return append([]string(nil), d.order...)
}

// Handle produces exactly one envelope for the call.
func (d *Dispatcher) Handle(ctx context.Context, call *Call) envelope.Envelope {
	h, ok := d.handlers[call.Op]
	if !ok {
		d.log.Info("no handler for operation", zap.String("op", call.Op))
		return envelope.NotImplemented()
	}

	env, err := d.serve(ctx, h, call)
	if err != nil {
		d.log.Error("operation failed", zap.String("op", call.Op), zap.Error(err))
		return envelope.Fault(err)
	}
	return env
}

func (d *Dispatcher) serve(ctx context.Context, h Handler, call *Call) (env envelope.Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("operation panicked", zap.String("op", call.Op), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Serve(ctx, call)
}
