package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-mbox"

	"github.com/fenilsonani/listmunge/internal/logging"
	"github.com/fenilsonani/listmunge/internal/message"
)

// unknownSender is the envelope sender used when a message has no usable
// From address.
const unknownSender = "MAILER-DAEMON"

// Mbox processes every message read from r and writes the results to w as
// a new mbox. The From_ line of each message is rebuilt from its From and
// Date headers.
func (b *Batch) Mbox(ctx context.Context, r io.Reader, w io.Writer) (*Stats, error) {
	began := time.Now()
	ctx, st := b.start(ctx)

	reader := mbox.NewReader(r)
	writer := mbox.NewWriter(w)

	for i := 1; ; i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		mr, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("failed to read message %d: %w", i, err)
		}
		raw, err := io.ReadAll(mr)
		if err != nil {
			return st, fmt.Errorf("failed to read message %d: %w", i, err)
		}

		mctx := logging.WithSource(ctx, "#"+strconv.Itoa(i))
		result := b.process(mctx, SourceMbox, raw, st)

		from, date := envelope(result)
		mw, err := writer.CreateMessage(from, date)
		if err != nil {
			return st, fmt.Errorf("failed to write message %d: %w", i, err)
		}
		if _, err := mw.Write(bytes.ReplaceAll(result, []byte("\r\n"), []byte("\n"))); err != nil {
			return st, fmt.Errorf("failed to write message %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return st, fmt.Errorf("failed to finish mbox: %w", err)
	}

	b.finish(ctx, st, began)
	return st, nil
}

// envelope returns the From_ line sender and date for raw
func envelope(raw []byte) (string, time.Time) {
	from, date := unknownSender, time.Time{}

	msg, err := message.Parse(raw)
	if err != nil {
		return from, time.Now()
	}
	h := msg.MailHeader()
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 && addrs[0].Address != "" {
		from = addrs[0].Address
	}
	if d, err := h.Date(); err == nil && !d.IsZero() {
		date = d
	}
	if date.IsZero() {
		date = time.Now()
	}
	return from, date
}
