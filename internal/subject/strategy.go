package subject

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/fenilsonani/listmunge/internal/charset"
)

// Strategy names the rewrite path that produced a result.
type Strategy string

const (
	StrategyASCII   Strategy = "ascii"
	StrategyUniform Strategy = "uniform"
	StrategyMixed   Strategy = "mixed"
)

// input is the per-message state shared by the strategies. It is built once
// by Rewrite and never modified afterwards.
type input struct {
	ctx       Context
	chunks    []Chunk
	prefix    string
	pattern   *regexp.Regexp
	ws        byte
	noSubject string
}

type strategy struct {
	name Strategy
	fn   func(in *input) (*Result, bool)
}

// strategies are tried in order; the first that applies wins. The mixed
// strategy always applies.
var strategies = []strategy{
	{StrategyASCII, asciiStrategy},
	{StrategyUniform, uniformStrategy},
	{StrategyMixed, mixedStrategy},
}

// asciiStrategy handles lists with a 7-bit charset receiving 7-bit
// subjects. Line breaks are removed before stripping and only the first
// line of the result is kept.
func asciiStrategy(in *input) (*Result, bool) {
	if !charset.IsASCII(in.ctx.Charset) {
		return nil, false
	}
	for _, c := range in.chunks {
		if !c.Known || !c.ASCII() {
			return nil, false
		}
	}

	text := strings.Join(splitLines(Render(in.chunks)), "")
	text = in.pattern.ReplaceAllLiteralString(text, "")
	stripped, marker := in.strip(text)
	value := assembleSubject(in.prefix, marker, stripped, false)

	return &Result{
		Header:   EncodeText(value, charset.ASCII, in.ws),
		Stripped: firstLine(stripped),
		Charset:  charset.ASCII,
		Chunks:   []Chunk{TextChunk(value, charset.ASCII)},
	}, true
}

// uniformStrategy handles subjects whose every chunk can be represented in
// the list charset. The rewritten header is declared in the list charset and
// keeps all lines of the subject.
func uniformStrategy(in *input) (*Result, bool) {
	target := listCharset(in.ctx)
	if !charset.Known(target) {
		return nil, false
	}

	var b strings.Builder
	for _, c := range in.chunks {
		if !c.Known {
			return nil, false
		}
		if !charset.Equal(c.Charset, target) && !charset.CanEncode(target, c.Text) {
			return nil, false
		}
		b.WriteString(c.Text)
	}

	text := in.pattern.ReplaceAllLiteralString(b.String(), "")
	stripped, marker := in.strip(text)
	value := assembleSubject(in.prefix, marker, stripped, true)

	return &Result{
		Header:   EncodeText(value, target, in.ws),
		Stripped: strings.Join(splitLines(stripped), ""),
		Charset:  target,
		Chunks:   []Chunk{TextChunk(value, target)},
	}, true
}

// mixedStrategy prepends the prefix as its own chunk and leaves every chunk
// but the first untouched, so text in charsets that cannot be converted
// survives byte for byte. Only the first chunk is searched for an old
// prefix and reply markers.
func mixedStrategy(in *input) (*Result, bool) {
	chunks := append([]Chunk(nil), in.chunks...)
	if !chunks[0].Known {
		chunks = append([]Chunk{TextChunk("", charset.ASCII)}, chunks...)
	}

	first := chunks[0]
	text := in.pattern.ReplaceAllLiteralString(first.Text, "")
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	text, found := stripReply(text)
	marker := ""
	if found {
		marker = canonicalReply
	}

	label := first.Charset
	if label == "" {
		label = charset.ASCII
	}
	chunks[0] = TextChunk(text, label)
	stripped := strings.TrimLeftFunc(Render(chunks), unicode.IsSpace)
	if stripped == "" {
		chunks[0] = TextChunk(in.noSubject, label)
		stripped = strings.TrimLeftFunc(Render(chunks), unicode.IsSpace)
	}

	out := make([]Chunk, 0, len(chunks)+1)
	out = append(out, TextChunk(in.prefix, listCharset(in.ctx)))
	out = append(out, TextChunk(marker+chunks[0].Text, label))
	out = append(out, chunks[1:]...)

	return &Result{
		Header:   Encode(out, in.ws),
		Stripped: stripped,
		Chunks:   out,
	}, true
}

// strip substitutes the blank-subject placeholder and removes a leading
// reply marker run, returning the remaining text and the canonical marker
// to put back, if any.
func (in *input) strip(text string) (string, string) {
	if isBlank(text) {
		text = in.noSubject
	}
	rest, found := stripReply(text)
	if !found {
		return text, ""
	}
	if isBlank(rest) {
		rest = in.noSubject
	}
	return rest, canonicalReply
}

// assembleSubject joins prefix, reply marker and the first line of text.
// Following lines are appended only when keepRest is set.
func assembleSubject(prefix, marker, text string, keepRest bool) string {
	lines := splitLines(text)
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(marker)
	if len(lines) > 0 {
		b.WriteString(lines[0])
	}
	if keepRest && len(lines) > 1 {
		for _, l := range lines[1:] {
			b.WriteString(l)
		}
	}
	return b.String()
}

func listCharset(c Context) string {
	if label := charset.Normalize(c.Charset); label != "" {
		return label
	}
	return charset.ASCII
}

func firstLine(s string) string {
	if lines := splitLines(s); len(lines) > 0 {
		return lines[0]
	}
	return ""
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
