package subject

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/fenilsonani/listmunge/internal/charset"
)

const (
	// maxLineLen is the folding limit for header lines, excluding CRLF.
	maxLineLen = 78
	// maxWordLen is the RFC 2047 limit for a single encoded-word.
	maxWordLen = 75
	// fieldName is accounted for on the first header line.
	fieldName = "Subject: "
)

// segment is the wire form of one chunk.
type segment struct {
	text    string
	encoded bool
}

// EncodeText renders text as a header value declared in label, folded with
// ws. Text the charset cannot represent is declared as utf-8 instead.
func EncodeText(text, label string, ws byte) string {
	return Encode([]Chunk{TextChunk(text, label)}, ws)
}

// Encode renders chunks as a wire-ready header value. 7-bit text is written
// as is; everything else becomes encoded-words in the chunk's charset.
// Lines are folded at spaces; ws starts a continuation line only between
// two encoded-words.
func Encode(chunks []Chunk, ws byte) string {
	var line strings.Builder
	var prev *segment
	for _, c := range chunks {
		seg := encodeChunk(c)
		if seg.text == "" {
			continue
		}
		if prev != nil {
			if prev.encoded {
				if seg.encoded || !startsWithSpace(seg.text) {
					line.WriteByte(' ')
				}
			} else if seg.encoded && !endsWithSpace(prev.text) {
				line.WriteByte(' ')
			}
		}
		line.WriteString(seg.text)
		prev = &seg
	}
	return fold(line.String(), ws)
}

func encodeChunk(c Chunk) segment {
	if !c.Known {
		return segment{text: encodeWords(c.Charset, splitRaw(c.Charset, c.Raw)), encoded: true}
	}
	if isPlain(c.Text) {
		return segment{text: c.Text}
	}
	label := c.Charset
	if charset.IsASCII(label) || !charset.CanEncode(label, c.Text) {
		label = charset.UTF8
	}
	return segment{text: encodeWords(label, splitText(label, c.Text)), encoded: true}
}

// wordRoom is the number of base64 characters an encoded-word in label
// can carry.
func wordRoom(label string) int {
	return maxWordLen - len("=?"+label+"?b??=")
}

// splitRaw cuts bytes of an unknown charset into word-sized pieces.
func splitRaw(label string, b []byte) [][]byte {
	n := wordRoom(label) / 4 * 3
	if n < 1 {
		n = 1
	}
	var pieces [][]byte
	for len(b) > n {
		pieces = append(pieces, b[:n])
		b = b[n:]
	}
	return append(pieces, b)
}

// isPlain reports whether s can go on the wire without encoding.
func isPlain(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 0x7f || c < ' ' && c != '\t' {
			return false
		}
	}
	return !strings.Contains(s, "=?")
}

// splitText cuts s into pieces whose encoded-words stay within the RFC 2047
// length limit, breaking only between runes. Each rune is measured once;
// a piece is encoded as a whole when it is closed, so stateful charsets
// get their shift sequences only at piece boundaries.
func splitText(label, s string) [][]byte {
	room := wordRoom(label)
	var pieces [][]byte
	start, size := 0, 0
	for i, r := range s {
		n := encodedLen(label, r)
		if i > start && base64.StdEncoding.EncodedLen(size+n) > room {
			pieces = append(pieces, encodeOrRaw(label, s[start:i]))
			start, size = i, 0
		}
		size += n
	}
	if start < len(s) {
		pieces = append(pieces, encodeOrRaw(label, s[start:]))
	}
	return pieces
}

// encodedLen is the number of bytes r takes in label.
func encodedLen(label string, r rune) int {
	b, err := charset.Encode(label, string(r))
	if err != nil {
		return utf8.RuneLen(r)
	}
	return len(b)
}

func encodeOrRaw(label, s string) []byte {
	b, err := charset.Encode(label, s)
	if err != nil {
		return []byte(s)
	}
	return b
}

// encodeWords writes each piece as one encoded-word, choosing Q or B
// encoding by length, and joins the words with spaces.
func encodeWords(label string, pieces [][]byte) string {
	if label == "" {
		label = charset.ASCII
	}
	words := make([]string, 0, len(pieces))
	for _, p := range pieces {
		words = append(words, encodeWord(label, p))
	}
	return strings.Join(words, " ")
}

func encodeWord(label string, b []byte) string {
	q := "=?" + label + "?q?" + qEncode(b) + "?="
	bw := "=?" + label + "?b?" + base64.StdEncoding.EncodeToString(b) + "?="
	if len(bw) < len(q) {
		return bw
	}
	return q
}

// qEncode applies the RFC 2047 Q encoding, which mime.QEncoding does not
// offer for bytes already converted to a non-UTF-8 charset.
func qEncode(b []byte) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == ' ':
			sb.WriteByte('_')
		case c >= '!' && c <= '~' && c != '=' && c != '?' && c != '_':
			sb.WriteByte(c)
		default:
			sb.WriteByte('=')
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&0x0f])
		}
	}
	return sb.String()
}

// fold breaks value into lines no longer than maxLineLen, counting the
// field name on the first line. Breaks happen only at spaces. The space
// stays as the first character of the continuation line, except between
// two encoded-words, where it is ignored on decode and ws is used instead.
func fold(value string, ws byte) string {
	if len(fieldName)+len(value) <= maxLineLen {
		return value
	}
	var b strings.Builder
	lineLen := len(fieldName)
	words := strings.Split(value, " ")
	for i, w := range words {
		switch {
		case i == 0:
		case w != "" && lineLen+1+len(w) > maxLineLen && lineLen > 1:
			b.WriteString("\r\n")
			if isEncodedWord(words[i-1]) && isEncodedWord(w) {
				b.WriteByte(ws)
			} else {
				b.WriteByte(' ')
			}
			lineLen = 1
		default:
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(w)
		lineLen += len(w)
	}
	return b.String()
}

func isEncodedWord(w string) bool {
	return len(w) > 4 && strings.HasPrefix(w, "=?") && strings.HasSuffix(w, "?=")
}

// Unfold removes the line breaks of a folded header value, keeping the
// whitespace that followed them.
func Unfold(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "")
	return strings.ReplaceAll(value, "\n", "")
}

func startsWithSpace(s string) bool {
	return s != "" && (s[0] == ' ' || s[0] == '\t')
}

func endsWithSpace(s string) bool {
	return s != "" && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t')
}
