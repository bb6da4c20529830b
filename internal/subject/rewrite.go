// Package subject rewrites Subject header values to carry a mailing list
// prefix. Old prefixes and reply markers are stripped first, and encoded
// text in charsets the list cannot represent is carried through unchanged.
package subject

import (
	"errors"
	"fmt"
	"strings"
)

// NoSubject is the message id of the placeholder used for blank subjects.
const NoSubject = "(no subject)"

// ErrNoPrefix is returned when the list has no usable subject prefix.
var ErrNoPrefix = errors.New("subject prefix is blank")

// Translator resolves a message id for a language code.
type Translator interface {
	Translate(lang, msgid string) string
}

// Context carries the list settings a rewrite depends on.
type Context struct {
	// Prefix is the configured subject prefix. It may contain one printf
	// style number placeholder such as %d or %05d.
	Prefix string
	// Charset is the list's preferred charset.
	Charset string
	// Language is the list's preferred language code.
	Language string
	// PostID is the list's post sequence number, valid when HasPostID is set.
	PostID    int
	HasPostID bool
}

// Result is a rewritten Subject.
type Result struct {
	// Header is the wire-ready header value, folded and encoded.
	Header string
	// Stripped is the subject text without the list prefix and reply markers.
	Stripped string
	// Charset is the charset the header is declared in. It is empty for
	// the mixed strategy, where chunks keep their own charsets.
	Charset  string
	Strategy Strategy
	// Prefix is the prefix as rendered for this message.
	Prefix string
	Chunks []Chunk
}

// Rewriter rewrites subjects. It holds no per-message state and is safe
// for concurrent use.
type Rewriter struct {
	tr Translator
}

// New returns a Rewriter that localizes the blank-subject placeholder with
// tr. A nil tr leaves the placeholder untranslated.
func New(tr Translator) *Rewriter {
	return &Rewriter{tr: tr}
}

// Rewrite rewrites the raw Subject value according to c. The raw value may
// be folded and may contain RFC 2047 encoded-words. Errors come only from
// a blank prefix or an undecodable header.
func (r *Rewriter) Rewrite(c Context, raw string) (*Result, error) {
	if strings.TrimSpace(c.Prefix) == "" {
		return nil, ErrNoPrefix
	}

	chunks, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	pattern, err := CompilePrefix(c.Prefix)
	if err != nil {
		return nil, err
	}

	in := &input{
		ctx:       c,
		chunks:    chunks,
		prefix:    FormatPrefix(c.Prefix, c.PostID, c.HasPostID),
		pattern:   pattern,
		ws:        ContinuationWS(chunks),
		noSubject: r.translate(c.Language, NoSubject),
	}
	for _, s := range strategies {
		if res, ok := s.fn(in); ok {
			res.Strategy = s.name
			res.Prefix = in.prefix
			return res, nil
		}
	}
	return nil, fmt.Errorf("no rewrite strategy applied to %q", raw)
}

func (r *Rewriter) translate(lang, msgid string) string {
	if r.tr == nil {
		return msgid
	}
	if s := r.tr.Translate(lang, msgid); s != "" {
		return s
	}
	return msgid
}
