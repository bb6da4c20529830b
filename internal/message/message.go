// Package message holds a mail message as it moves through the list
// pipeline: the parsed header, the untouched body, and per-message
// metadata.
package message

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// Header names used by the pipeline.
const (
	HeaderSubject    = "Subject"
	HeaderListID     = "List-Id"
	HeaderMessageID  = "Message-Id"
	HeaderParentList = "X-Mailman-Parent-List"
)

// ErrNoHeader is returned when a header field is not present.
var ErrNoHeader = errors.New("header field not present")

// Message is a mail message with a mutable header. The body is kept as
// read and written back byte for byte.
type Message struct {
	Header textproto.Header
	Body   []byte
}

// Read parses a message from r.
func Read(r io.Reader) (*Message, error) {
	br := bufio.NewReader(r)
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return &Message{Header: h, Body: body}, nil
}

// Parse parses a message held in memory.
func Parse(b []byte) (*Message, error) {
	return Read(bytes.NewReader(b))
}

// WriteTo writes the message in wire form.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := textproto.WriteHeader(cw, m.Header); err != nil {
		return cw.n, fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := cw.Write(m.Body); err != nil {
		return cw.n, fmt.Errorf("failed to write body: %w", err)
	}
	return cw.n, nil
}

// Bytes returns the message in wire form.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RawValue returns the value of the first key field as it appears on the
// wire, folding included, without the field name and the final CRLF.
func (m *Message) RawValue(key string) (string, error) {
	if !m.Header.Has(key) {
		return "", fmt.Errorf("%w: %s", ErrNoHeader, key)
	}
	raw, err := m.Header.Raw(key)
	if err != nil {
		// Fields that cannot be formatted as is fall back to the unfolded value.
		return m.Header.Get(key), nil
	}
	s := string(raw)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimLeft(s, " \t")
	return strings.TrimRight(s, "\r\n"), nil
}

// Subject returns the raw Subject value, or "" when there is none.
func (m *Message) Subject() string {
	v, err := m.RawValue(HeaderSubject)
	if err != nil {
		return ""
	}
	return v
}

// MailHeader returns the header with the mail field accessors.
func (m *Message) MailHeader() mail.Header {
	return mail.Header{Header: gomessage.Header{Header: m.Header}}
}

// DecodedSubject returns the Subject as display text.
func (m *Message) DecodedSubject() (string, error) {
	h := m.MailHeader()
	return h.Subject()
}

// ReplaceSubject removes every Subject field and adds one holding value,
// which must already be encoded and folded.
func (m *Message) ReplaceSubject(value string) {
	m.Header.Del(HeaderSubject)
	m.Header.AddRaw([]byte(HeaderSubject + ": " + value + "\r\n"))
}

// ListID returns the List-Id value and whether the field is present.
func (m *Message) ListID() (string, bool) {
	return m.Header.Get(HeaderListID), m.Header.Has(HeaderListID)
}

// MessageID returns the Message-Id without angle brackets.
func (m *Message) MessageID() string {
	h := m.MailHeader()
	id, err := h.MessageID()
	if err != nil {
		return strings.Trim(m.Header.Get(HeaderMessageID), "<> ")
	}
	return id
}

// SetIfAbsent sets key to value unless the field is already present. It
// reports whether the field was added.
func (m *Message) SetIfAbsent(key, value string) bool {
	if m.Header.Has(key) {
		return false
	}
	m.Header.Set(key, value)
	return true
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
