package subject

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fenilsonani/listmunge/internal/charset"
)

// ErrMalformedHeader is returned when an encoded-word cannot be decoded.
var ErrMalformedHeader = errors.New("malformed encoded-word")

// unknown8bit labels unencoded runs holding bytes that are not UTF-8.
const unknown8bit = "unknown-8bit"

// Chunk is one decoded fragment of a header value. It is either decoded
// text (Known is set) or the raw bytes of an encoded-word whose charset
// could not be resolved.
type Chunk struct {
	// Text is the UTF-8 text of the chunk. Empty when Known is false.
	Text string
	// Raw holds the bytes as they appeared in Charset. Set for chunks that
	// came from an encoded-word and have not been modified since.
	Raw []byte
	// Charset is the normalized charset label, "" for unencoded 7-bit text.
	Charset string
	Known   bool
}

// TextChunk returns a decoded chunk tagged with label.
func TextChunk(text, label string) Chunk {
	return Chunk{Text: text, Charset: charset.Normalize(label), Known: true}
}

// ASCII reports whether the chunk is tagged with a 7-bit charset.
func (c Chunk) ASCII() bool {
	return charset.IsASCII(c.Charset)
}

// display returns the text used when rendering the chunk for humans.
func (c Chunk) display() string {
	if c.Known {
		return c.Text
	}
	return strings.ToValidUTF8(string(c.Raw), "�")
}

var encodedWord = regexp.MustCompile(`=\?([^?]*?)\?([qQbB])\?(.*?)\?=`)

type word struct {
	text     string
	encoding byte // 0 for unencoded text, else 'q' or 'b'
	charset  string
}

// Decode splits a raw header value into chunks, decoding RFC 2047
// encoded-words. A value without encoded-words is returned as a single
// chunk with its folding intact. Decode never returns an empty slice.
func Decode(value string) ([]Chunk, error) {
	if !encodedWord.MatchString(value) {
		return []Chunk{plainChunk(value)}, nil
	}

	var words []word
	line := strings.TrimLeftFunc(Unfold(value), unicode.IsSpace)
	pos := 0
	for _, m := range encodedWord.FindAllStringSubmatchIndex(line, -1) {
		if unencoded := line[pos:m[0]]; unencoded != "" {
			words = append(words, word{text: unencoded})
		}
		words = append(words, word{
			text:     line[m[6]:m[7]],
			encoding: byte(unicode.ToLower(rune(line[m[4]]))),
			charset:  charset.Normalize(line[m[2]:m[3]]),
		})
		pos = m[1]
	}
	if rest := line[pos:]; rest != "" {
		words = append(words, word{text: rest})
	}

	// Whitespace between two encoded-words is not part of the text.
	kept := words[:0:0]
	for i, w := range words {
		if w.encoding == 0 && i > 0 && i+1 < len(words) &&
			words[i-1].encoding != 0 && words[i+1].encoding != 0 &&
			strings.TrimSpace(w.text) == "" {
			continue
		}
		kept = append(kept, w)
	}

	type run struct {
		b       []byte
		charset string
		encoded bool
	}
	var runs []run
	for _, w := range kept {
		var b []byte
		switch w.encoding {
		case 0:
			b = []byte(w.text)
		case 'q':
			b = decodeQ(w.text)
		case 'b':
			var err error
			if b, err = decodeB(w.text); err != nil {
				return nil, err
			}
		}
		if n := len(runs); n > 0 && runs[n-1].charset == w.charset && runs[n-1].encoded == (w.encoding != 0) {
			runs[n-1].b = append(runs[n-1].b, b...)
			continue
		}
		runs = append(runs, run{b: b, charset: w.charset, encoded: w.encoding != 0})
	}

	chunks := make([]Chunk, 0, len(runs))
	for _, r := range runs {
		if !r.encoded {
			chunks = append(chunks, plainChunk(string(r.b)))
			continue
		}
		c := Chunk{Raw: r.b, Charset: r.charset}
		if text, err := charset.Decode(r.charset, r.b); err == nil {
			c.Text = text
			c.Known = true
		}
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		chunks = append(chunks, plainChunk(""))
	}
	return chunks, nil
}

// plainChunk tags unencoded header text. 8-bit text is labelled utf-8 when
// it is valid UTF-8 and kept raw otherwise.
func plainChunk(s string) Chunk {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			if utf8.ValidString(s) {
				return Chunk{Text: s, Charset: charset.UTF8, Known: true}
			}
			return Chunk{Raw: []byte(s), Charset: unknown8bit}
		}
	}
	return Chunk{Text: s, Known: true}
}

func decodeQ(s string) []byte {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '_':
			b = append(b, ' ')
		case c == '=' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b = append(b, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
		default:
			b = append(b, c)
		}
	}
	return b
}

func decodeB(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if pad := len(s) % 4; pad != 0 {
		s += "==="[:4-pad]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedHeader, err)
	}
	return b, nil
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// Render joins chunks into display text. A space is inserted where 7-bit
// text meets encoded text, unless one is already there.
func Render(chunks []Chunk) string {
	var b strings.Builder
	var lastASCII, lastSpace bool
	for i, c := range chunks {
		s := c.display()
		ascii := c.ASCII()
		if i > 0 {
			hasSpace := s != "" && nonctext(firstRune(s))
			if !lastASCII {
				if ascii && !hasSpace {
					b.WriteByte(' ')
				}
			} else if !ascii && !lastSpace {
				b.WriteByte(' ')
			}
		}
		lastSpace = s != "" && nonctext(lastRune(s))
		lastASCII = ascii
		b.WriteString(s)
	}
	return b.String()
}

func nonctext(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '\\'
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

// ContinuationWS returns the whitespace used on the second line of the
// rendered header, or a tab when there is none.
func ContinuationWS(chunks []Chunk) byte {
	lines := splitLines(Render(chunks))
	if len(lines) > 1 && lines[1] != "" && (lines[1][0] == ' ' || lines[1][0] == '\t') {
		return lines[1][0]
	}
	return '\t'
}

// splitLines splits s at line boundaries, dropping the terminators. A
// trailing terminator does not produce an empty last line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				size++
			}
			start = i + size
		case '\n', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
			lines = append(lines, s[start:i])
			start = i + size
		}
		i += size
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
