// Package batch runs the pipeline over stored mail: every message of a
// Maildir or an mbox file.
package batch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fenilsonani/listmunge/internal/logging"
	"github.com/fenilsonani/listmunge/internal/message"
	"github.com/fenilsonani/listmunge/internal/metrics"
)

// Sources
const (
	SourceMaildir = "maildir"
	SourceMbox    = "mbox"
)

// Processor processes one message in place
type Processor interface {
	Process(ctx context.Context, msg *message.Message, md *message.Metadata) error
}

// Stats summarizes a batch run
type Stats struct {
	RunID     string
	Processed int
	Failed    int
	Duration  time.Duration
}

// Batch runs a Processor over many messages. A message that fails to
// process is logged, counted and written out unchanged.
type Batch struct {
	proc   Processor
	logger *logging.Logger

	// Metadata is copied into every message's metadata before processing.
	Metadata message.Metadata
}

// New creates a batch runner. A nil logger discards log output.
func New(proc Processor, logger *logging.Logger) *Batch {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Batch{proc: proc, logger: logger.Batch()}
}

// start prepares the context and stats of a run
func (b *Batch) start(ctx context.Context) (context.Context, *Stats) {
	st := &Stats{RunID: generateRunID()}
	return logging.WithRunID(ctx, st.RunID), st
}

// process parses raw and runs the processor over it. It returns the bytes
// to write out: the processed message, or raw when anything failed.
func (b *Batch) process(ctx context.Context, source string, raw []byte, st *Stats) []byte {
	out, err := b.processMessage(ctx, raw)
	if err != nil {
		st.Failed++
		metrics.RecordBatch(source, false)
		b.logger.ErrorContext(ctx, "message left unchanged", err)
		return raw
	}
	st.Processed++
	metrics.RecordBatch(source, true)
	return out
}

func (b *Batch) processMessage(ctx context.Context, raw []byte) ([]byte, error) {
	msg, err := message.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	md := b.Metadata
	if err := b.proc.Process(ctx, msg, &md); err != nil {
		return nil, err
	}
	return msg.Bytes()
}

func (b *Batch) finish(ctx context.Context, st *Stats, began time.Time) {
	st.Duration = time.Since(began)
	b.logger.InfoContext(ctx, "batch finished",
		"processed", st.Processed,
		"failed", st.Failed,
		"duration", st.Duration.String(),
	)
}

// generateRunID creates a unique run ID
func generateRunID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%d-%s", time.Now().Unix(), hex.EncodeToString(b))
}
