package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/fenilsonani/listmunge/internal/journal"
	"github.com/fenilsonani/listmunge/internal/lists"
	"github.com/fenilsonani/listmunge/internal/logging"
	"github.com/fenilsonani/listmunge/internal/message"
	"github.com/fenilsonani/listmunge/internal/metrics"
	"github.com/fenilsonani/listmunge/internal/subject"
)

// Handler names
const (
	NestedSubjectPrefixName = "nested-subject-prefix"
	AfterDeliveryName       = "after-delivery"
)

// Skip reasons
const (
	skipDigest    = "digest"
	skipFastTrack = "fasttrack"
	skipNested    = "nested"
	skipNoPrefix  = "no_prefix"
)

// NestedSubjectPrefix adds the list's subject prefix. Messages that
// already came through a parent list are marked and left undecorated.
type NestedSubjectPrefix struct {
	rewriter *subject.Rewriter
	journal  *journal.Journal
	logger   *logging.Logger
}

// NewNestedSubjectPrefix creates the handler. jnl may be nil.
func NewNestedSubjectPrefix(rewriter *subject.Rewriter, jnl *journal.Journal, logger *logging.Logger) *NestedSubjectPrefix {
	if rewriter == nil {
		rewriter = subject.New(nil)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &NestedSubjectPrefix{rewriter: rewriter, journal: jnl, logger: logger.Subject()}
}

func (h *NestedSubjectPrefix) Name() string { return NestedSubjectPrefixName }

func (h *NestedSubjectPrefix) Process(ctx context.Context, list *lists.List, msg *message.Message, md *message.Metadata) error {
	if md.Skip() {
		reason := skipFastTrack
		if md.IsDigest {
			reason = skipDigest
		}
		metrics.RecordSkip(reason)
		return nil
	}

	if id, ok := msg.ListID(); ok {
		md.NoDecorate = true
		if msg.SetIfAbsent(message.HeaderParentList, id) {
			md.ParentList = id
		}
		metrics.NestedMessages.Inc()
		metrics.RecordSkip(skipNested)
		h.logger.DebugContext(ctx, "nested list message left undecorated", "parent_list", id)
		return nil
	}

	if strings.TrimSpace(list.SubjectPrefix) == "" {
		metrics.RecordSkip(skipNoPrefix)
		return nil
	}

	raw := msg.Subject()
	md.OriginalSubject = raw

	res, err := h.rewriter.Rewrite(list.SubjectContext(), raw)
	if err != nil {
		metrics.RecordError("subject", errorType(err))
		return err
	}

	msg.ReplaceSubject(res.Header)
	md.StrippedSubject = res.Stripped
	md.SubjectStrategy = string(res.Strategy)
	if list.PostIDKnown {
		md.PostID = list.PostID
	}
	metrics.RecordRewrite(list.Name, string(res.Strategy))

	display, err := msg.DecodedSubject()
	if err != nil {
		display = res.Stripped
	}
	h.logger.InfoContext(ctx, "subject rewritten",
		"strategy", string(res.Strategy),
		"prefix", res.Prefix,
		"subject", display,
	)

	if err := h.journal.Record(ctx, journal.Entry{
		List:      list.Name,
		ListID:    list.ListID,
		MessageID: msg.MessageID(),
		Strategy:  string(res.Strategy),
		Original:  raw,
		Rewritten: res.Header,
		Stripped:  res.Stripped,
		Charsets:  chunkCharsets(res.Chunks),
	}); err != nil {
		// Journal failures do not fail the message
		metrics.RecordError("journal", "record")
		h.logger.WarnContext(ctx, "failed to journal rewrite", "error", err.Error())
	}

	return nil
}

func errorType(err error) string {
	if errors.Is(err, subject.ErrMalformedHeader) {
		return "malformed"
	}
	return "rewrite"
}

// chunkCharsets lists the distinct chunk charsets in order
func chunkCharsets(chunks []subject.Chunk) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range chunks {
		if c.Charset == "" || seen[c.Charset] {
			continue
		}
		seen[c.Charset] = true
		out = append(out, c.Charset)
	}
	return out
}

// AfterDelivery advances the list's post sequence once a post has gone
// through the pipeline. Digests do not consume a post id.
type AfterDelivery struct {
	registry *lists.Registry
	logger   *logging.Logger
}

// NewAfterDelivery creates the handler. A nil registry makes it a no-op.
func NewAfterDelivery(registry *lists.Registry, logger *logging.Logger) *AfterDelivery {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AfterDelivery{registry: registry, logger: logger.Store()}
}

func (h *AfterDelivery) Name() string { return AfterDeliveryName }

func (h *AfterDelivery) Process(ctx context.Context, list *lists.List, msg *message.Message, md *message.Metadata) error {
	if h.registry == nil || md.IsDigest {
		return nil
	}

	n, err := h.registry.Advance(ctx, list.Name)
	if errors.Is(err, lists.ErrNoSequence) {
		h.logger.DebugContext(ctx, "no post sequence for list")
		return nil
	}
	if err != nil {
		metrics.RecordError("sequence", "advance")
		return err
	}

	metrics.RecordAdvance(list.Name)
	h.logger.DebugContext(ctx, "post id advanced", "post_id", n)
	return nil
}
