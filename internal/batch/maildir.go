package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-maildir"

	"github.com/fenilsonani/listmunge/internal/logging"
	"github.com/fenilsonani/listmunge/internal/metrics"
)

// Maildir processes every message in the src Maildir and stores the
// results in dst, which is created if needed. Messages in src/new are
// moved to src/cur first. Flags are carried over.
func (b *Batch) Maildir(ctx context.Context, src, dst string) (*Stats, error) {
	began := time.Now()
	ctx, st := b.start(ctx)

	in := maildir.Dir(src)
	out := maildir.Dir(dst)
	if err := out.Init(); err != nil {
		return nil, fmt.Errorf("failed to create maildir %s: %w", dst, err)
	}

	if _, err := in.Unseen(); err != nil {
		return nil, fmt.Errorf("failed to read %s/new: %w", src, err)
	}
	msgs, err := in.Messages()
	if err != nil {
		return nil, fmt.Errorf("failed to list maildir %s: %w", src, err)
	}

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		mctx := logging.WithSource(ctx, m.Key())

		raw, err := readAll(m.Open)
		if err != nil {
			st.Failed++
			metrics.RecordBatch(SourceMaildir, false)
			b.logger.ErrorContext(mctx, "failed to read message", err)
			continue
		}

		result := b.process(mctx, SourceMaildir, raw, st)

		_, w, err := out.Create(m.Flags())
		if err != nil {
			return st, fmt.Errorf("failed to create message in %s: %w", dst, err)
		}
		if _, err := w.Write(result); err != nil {
			w.Close()
			return st, fmt.Errorf("failed to write message to %s: %w", dst, err)
		}
		if err := w.Close(); err != nil {
			return st, fmt.Errorf("failed to write message to %s: %w", dst, err)
		}
	}

	b.finish(ctx, st, began)
	return st, nil
}

func readAll(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
