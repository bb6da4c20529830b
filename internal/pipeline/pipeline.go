// Package pipeline runs list handlers over a message in order.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilsonani/listmunge/internal/journal"
	"github.com/fenilsonani/listmunge/internal/lists"
	"github.com/fenilsonani/listmunge/internal/logging"
	"github.com/fenilsonani/listmunge/internal/message"
	"github.com/fenilsonani/listmunge/internal/metrics"
	"github.com/fenilsonani/listmunge/internal/subject"
)

// Handler is one step of the pipeline
type Handler interface {
	Name() string
	Process(ctx context.Context, list *lists.List, msg *message.Message, md *message.Metadata) error
}

// Pipeline is an ordered list of handlers
type Pipeline struct {
	handlers []Handler
	logger   *logging.Logger
}

// New creates a pipeline running handlers in order. A nil logger discards
// log output.
func New(logger *logging.Logger, handlers ...Handler) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{handlers: handlers, logger: logger.Pipeline()}
}

// NewDefault creates the standard pipeline: the nested subject prefix
// handler followed by the after-delivery handler. jnl may be nil.
func NewDefault(logger *logging.Logger, registry *lists.Registry, rewriter *subject.Rewriter, jnl *journal.Journal) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return New(logger,
		NewNestedSubjectPrefix(rewriter, jnl, logger),
		NewAfterDelivery(registry, logger),
	)
}

// Handlers returns the handler names in order
func (p *Pipeline) Handlers() []string {
	names := make([]string, len(p.handlers))
	for i, h := range p.handlers {
		names[i] = h.Name()
	}
	return names
}

// Process runs every handler over msg. The first handler error stops the
// run and is returned wrapped with the handler name.
func (p *Pipeline) Process(ctx context.Context, list *lists.List, msg *message.Message, md *message.Metadata) error {
	if md == nil {
		md = &message.Metadata{}
	}
	ctx = logging.WithList(ctx, list.Name)
	if id := msg.MessageID(); id != "" {
		ctx = logging.WithMessageID(ctx, id)
	}
	metrics.MessagesProcessed.Inc()

	for _, h := range p.handlers {
		start := time.Now()
		err := h.Process(ctx, list, msg, md)
		metrics.RecordHandler(h.Name(), time.Since(start).Seconds())
		if err != nil {
			metrics.RecordError("pipeline", h.Name())
			p.logger.ErrorContext(ctx, "handler failed", err, "handler", h.Name())
			return fmt.Errorf("%s: %w", h.Name(), err)
		}
		p.logger.DebugContext(ctx, "handler done", "handler", h.Name())
	}
	return nil
}

// Runner resolves a list through the registry and runs the pipeline
// for it, so every message sees the list's current post id.
type Runner struct {
	Registry *lists.Registry
	Pipeline *Pipeline
	List     string
}

// Process resolves the runner's list and processes msg.
func (r *Runner) Process(ctx context.Context, msg *message.Message, md *message.Metadata) error {
	list, err := r.Registry.Resolve(ctx, r.List)
	if err != nil {
		return err
	}
	return r.Pipeline.Process(ctx, list, msg, md)
}
