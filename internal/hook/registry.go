package hook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// @MX:ANCHOR: [AUTO] Dispatch is the only path from Claude Code into the orchestrator. It must always produce an output.
// @MX:REASON: a hook that errors or hangs blocks the user's prompt
// handlerRegistry is the default implementation of the Registry interface.
// Handlers run sequentially, each bounded by the registry timeout, and
// their additional context is joined in registration order.
type handlerRegistry struct {
	handlers map[EventType][]Handler
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRegistry creates a new Registry with the default timeout.
func NewRegistry(logger *slog.Logger) *handlerRegistry {
	return NewRegistryWithTimeout(logger, DefaultHookTimeout)
}

// NewRegistryWithTimeout creates a new Registry with a custom timeout duration.
func NewRegistryWithTimeout(logger *slog.Logger, timeout time.Duration) *handlerRegistry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &handlerRegistry{
		handlers: make(map[EventType][]Handler),
		timeout:  timeout,
		logger:   logger,
	}
}

// Register adds a handler to the registry for its declared event type.
func (r *handlerRegistry) Register(handler Handler) {
	event := handler.EventType()
	r.handlers[event] = append(r.handlers[event], handler)
	r.logger.Debug("handler registered",
		"event", string(event),
		"handler_count", len(r.handlers[event]),
	)
}

// Dispatch sends an event to all registered handlers. A handler that errors,
// panics or times out contributes nothing; the others still run.
func (r *handlerRegistry) Dispatch(ctx context.Context, event EventType, input *HookInput) *HookOutput {
	handlers := r.handlers[event]
	if len(handlers) == 0 || input == nil {
		r.logger.Debug("no handlers registered for event", "event", string(event))
		return &HookOutput{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var parts []string
	for i, h := range handlers {
		r.logger.Debug("dispatching handler",
			"event", string(event),
			"handler_index", i,
			"handler_total", len(handlers),
		)

		output, err := r.run(ctx, h, input)
		if err != nil {
			r.logger.Error("handler failed",
				"event", string(event),
				"handler_index", i,
				"error", err.Error(),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if c := output.AdditionalContext(); c != "" {
			parts = append(parts, c)
		}
	}

	return NewContextOutput(event, strings.Join(parts, "\n\n"))
}

// run calls h on its own goroutine so a stuck handler cannot outlive the
// dispatch deadline.
func (r *handlerRegistry) run(ctx context.Context, h Handler, input *HookInput) (*HookOutput, error) {
	type result struct {
		out *HookOutput
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("handler panicked: %v", p)}
			}
		}()
		out, err := h.Handle(ctx, input)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s: %v", ErrHookTimeout, r.timeout, ctx.Err())
	}
}

// Handlers returns all handlers registered for the given event type.
func (r *handlerRegistry) Handlers(event EventType) []Handler {
	return r.handlers[event]
}
