package subject

import (
	"errors"
	"strings"
	"testing"
)

type fakeTranslator map[string]string

func (f fakeTranslator) Translate(lang, msgid string) string {
	if s, ok := f[lang]; ok {
		return s
	}
	return msgid
}

func asciiList() Context {
	return Context{Prefix: "[list] ", Charset: "us-ascii", Language: "en"}
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name         string
		ctx          Context
		raw          string
		wantHeader   string
		wantStripped string
		wantStrategy Strategy
	}{
		{
			name:         "adds prefix",
			ctx:          asciiList(),
			raw:          "Hello",
			wantHeader:   "[list] Hello",
			wantStripped: "Hello",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "existing prefix not duplicated",
			ctx:          asciiList(),
			raw:          "[list] Hello",
			wantHeader:   "[list] Hello",
			wantStripped: "Hello",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "reply markers collapse",
			ctx:          asciiList(),
			raw:          "Re: RE[2]: Hello",
			wantHeader:   "[list] Re: Hello",
			wantStripped: "Hello",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "prefix after reply marker",
			ctx:          asciiList(),
			raw:          "Re: [list] Hello",
			wantHeader:   "[list] Re: Hello",
			wantStripped: "Hello",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "folded ascii subject is joined",
			ctx:          asciiList(),
			raw:          "Hello\r\n world",
			wantHeader:   "[list] Hello world",
			wantStripped: "Hello world",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "empty subject",
			ctx:          asciiList(),
			raw:          "",
			wantHeader:   "[list] (no subject)",
			wantStripped: "(no subject)",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "only the prefix",
			ctx:          asciiList(),
			raw:          "[list] ",
			wantHeader:   "[list] (no subject)",
			wantStripped: "(no subject)",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "only a reply marker",
			ctx:          asciiList(),
			raw:          "Re:",
			wantHeader:   "[list] Re: (no subject)",
			wantStripped: "(no subject)",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "numbered prefix",
			ctx:          Context{Prefix: "[list %05d] ", Charset: "us-ascii", PostID: 42, HasPostID: true},
			raw:          "[list 00007] Hello",
			wantHeader:   "[list 00042] Hello",
			wantStripped: "Hello",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "numbered prefix without sequence",
			ctx:          Context{Prefix: "[list %d] ", Charset: "us-ascii"},
			raw:          "[list 3] Hello",
			wantHeader:   "[list %d] Hello",
			wantStripped: "Hello",
			wantStrategy: StrategyASCII,
		},
		{
			name:         "blank subject on utf-8 list",
			ctx:          Context{Prefix: "[list] ", Charset: "utf-8"},
			raw:          "  ",
			wantHeader:   "[list] (no subject)",
			wantStripped: "(no subject)",
			wantStrategy: StrategyUniform,
		},
		{
			name:         "ascii subject on utf-8 list",
			ctx:          Context{Prefix: "[list] ", Charset: "utf-8"},
			raw:          "Re: [list] Hello",
			wantHeader:   "[list] Re: Hello",
			wantStripped: "Hello",
			wantStrategy: StrategyUniform,
		},
		{
			name:         "blank subject on list with unknown charset",
			ctx:          Context{Prefix: "[list] ", Charset: "x-bogus"},
			raw:          "",
			wantHeader:   "[list] (no subject)",
			wantStripped: "(no subject)",
			wantStrategy: StrategyMixed,
		},
		{
			name:         "mixed charsets",
			ctx:          Context{Prefix: "[list] ", Charset: "iso-8859-1"},
			raw:          "=?iso-8859-1?q?caf=E9?= =?koi8-r?q?=D0=D2=C9=D7=C5=D4?=",
			wantHeader:   "[list] =?iso-8859-1?q?caf=E9?= =?koi8-r?b?0NLJ18XU?=",
			wantStripped: "caféпривет",
			wantStrategy: StrategyMixed,
		},
		{
			name:         "mixed charsets with reply marker in first chunk",
			ctx:          Context{Prefix: "[list] ", Charset: "iso-8859-1"},
			raw:          "=?iso-8859-1?q?Re:_[list]_caf=E9?= =?koi8-r?q?=D0=D2=C9=D7=C5=D4?=",
			wantHeader:   "[list] =?iso-8859-1?q?Re:_caf=E9?= =?koi8-r?b?0NLJ18XU?=",
			wantStripped: "caféпривет",
			wantStrategy: StrategyMixed,
		},
		{
			name:         "unknown first chunk",
			ctx:          Context{Prefix: "[list] ", Charset: "utf-8"},
			raw:          "=?x-bogus?q?abc?= tail",
			wantHeader:   "[list] =?x-bogus?q?abc?= tail",
			wantStripped: "abc tail",
			wantStrategy: StrategyMixed,
		},
	}

	r := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Rewrite(tt.ctx, tt.raw)
			if err != nil {
				t.Fatalf("Rewrite() error = %v", err)
			}
			if res.Header != tt.wantHeader {
				t.Errorf("Header = %q, want %q", res.Header, tt.wantHeader)
			}
			if res.Stripped != tt.wantStripped {
				t.Errorf("Stripped = %q, want %q", res.Stripped, tt.wantStripped)
			}
			if res.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %q, want %q", res.Strategy, tt.wantStrategy)
			}
		})
	}
}

func TestRewriteASCIIWinsOverOtherStrategies(t *testing.T) {
	in := &input{
		ctx:       asciiList(),
		chunks:    []Chunk{TextChunk("Re: Hello", "")},
		prefix:    "[list] ",
		ws:        '\t',
		noSubject: NoSubject,
	}
	var err error
	if in.pattern, err = CompilePrefix(in.ctx.Prefix); err != nil {
		t.Fatal(err)
	}

	// All three strategies accept this input.
	ascii, ok := asciiStrategy(in)
	if !ok {
		t.Fatal("ascii strategy declined")
	}
	if _, ok := uniformStrategy(in); !ok {
		t.Fatal("uniform strategy declined")
	}
	if _, ok := mixedStrategy(in); !ok {
		t.Fatal("mixed strategy declined")
	}

	res, err := New(nil).Rewrite(in.ctx, "Re: Hello")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.Strategy != StrategyASCII || res.Header != ascii.Header || res.Stripped != ascii.Stripped {
		t.Errorf("Rewrite() = %+v, want the ascii result %+v", res, ascii)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	contexts := []Context{
		asciiList(),
		{Prefix: "[list] ", Charset: "utf-8"},
		{Prefix: "[list] ", Charset: "iso-8859-1"},
		{Prefix: "[list %d] ", Charset: "us-ascii", PostID: 9, HasPostID: true},
	}
	subjects := []string{
		"Hello",
		"Re: Hello",
		"=?utf-8?q?caf=C3=A9?=",
		"=?iso-8859-1?q?caf=E9?= =?koi8-r?q?=D0=D2=C9=D7=C5=D4?=",
		strings.Repeat("word ", 30),
		"Re: " + strings.TrimSpace(strings.Repeat("a longer subject line ", 8)),
		strings.Repeat("привет ", 20),
	}

	r := New(nil)
	for _, c := range contexts {
		for _, s := range subjects {
			once, err := r.Rewrite(c, s)
			if err != nil {
				t.Fatalf("Rewrite(%q) error = %v", s, err)
			}
			twice, err := r.Rewrite(c, once.Header)
			if err != nil {
				t.Fatalf("Rewrite(%q) error = %v", once.Header, err)
			}
			a, _ := decodeString(once.Header)
			b, _ := decodeString(twice.Header)
			if a != b {
				t.Errorf("charset %s, subject %q: second rewrite %q differs from first %q", c.Charset, s, b, a)
			}
			if once.Stripped != twice.Stripped {
				t.Errorf("charset %s, subject %q: stripped %q then %q", c.Charset, s, once.Stripped, twice.Stripped)
			}
		}
	}
}

// Folding must not change the text: a long subject survives repeated
// rewrites with its spaces intact.
func TestRewriteLongSubjectKeepsSpaces(t *testing.T) {
	raw := strings.Repeat("word ", 30)
	r := New(nil)

	res, err := r.Rewrite(asciiList(), raw)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if !strings.Contains(res.Header, "\r\n") {
		t.Fatalf("header %q was not folded", res.Header)
	}
	first := res.Stripped

	for pass := 2; pass <= 3; pass++ {
		if strings.Contains(Unfold(res.Header), "\t") {
			t.Fatalf("pass %d: unfolded header %q contains a tab", pass-1, Unfold(res.Header))
		}
		if res, err = r.Rewrite(asciiList(), res.Header); err != nil {
			t.Fatalf("pass %d: Rewrite() error = %v", pass, err)
		}
		if res.Stripped != first {
			t.Errorf("pass %d: stripped = %q, want %q", pass, res.Stripped, first)
		}
	}
	if want := "[list] " + strings.TrimSuffix(raw, " "); strings.TrimSuffix(Unfold(res.Header), " ") != want {
		t.Errorf("unfolded header = %q, want %q", Unfold(res.Header), want)
	}
}

func TestRewriteUniformCharset(t *testing.T) {
	c := Context{Prefix: "[list] ", Charset: "utf-8"}
	res, err := New(nil).Rewrite(c, "Re: =?utf-8?q?caf=C3=A9?=")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.Strategy != StrategyUniform {
		t.Errorf("Strategy = %q, want uniform", res.Strategy)
	}
	if res.Charset != "utf-8" {
		t.Errorf("Charset = %q, want utf-8", res.Charset)
	}
	if res.Stripped != "café" {
		t.Errorf("Stripped = %q, want café", res.Stripped)
	}
	text, err := decodeString(res.Header)
	if err != nil {
		t.Fatalf("decodeString(%q) error = %v", res.Header, err)
	}
	if text != "[list] Re: café" {
		t.Errorf("decoded header = %q, want %q", text, "[list] Re: café")
	}
}

func TestRewriteConvertsToListCharset(t *testing.T) {
	c := Context{Prefix: "[liste] ", Charset: "iso-8859-1"}
	res, err := New(nil).Rewrite(c, "=?utf-8?q?caf=C3=A9?=")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.Strategy != StrategyUniform {
		t.Fatalf("Strategy = %q, want uniform", res.Strategy)
	}
	if !strings.HasPrefix(res.Header, "=?iso-8859-1?") {
		t.Errorf("Header = %q, want iso-8859-1 encoded-word", res.Header)
	}
}

func TestRewriteMixedKeepsCharsets(t *testing.T) {
	c := Context{Prefix: "[list] ", Charset: "iso-8859-1"}
	res, err := New(nil).Rewrite(c, "=?iso-8859-1?q?caf=E9?= =?koi8-r?q?=D0=D2=C9=D7=C5=D4?=")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.Strategy != StrategyMixed {
		t.Fatalf("Strategy = %q, want mixed", res.Strategy)
	}
	last := res.Chunks[len(res.Chunks)-1]
	if last.Charset != "koi8-r" {
		t.Errorf("last chunk charset = %q, want koi8-r", last.Charset)
	}
	if !strings.Contains(res.Header, "=?koi8-r?") {
		t.Errorf("Header %q lost the koi8-r chunk", res.Header)
	}
	text, err := decodeString(res.Header)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(text, "привет") {
		t.Errorf("decoded header = %q", text)
	}
}

func TestRewriteTranslatesPlaceholder(t *testing.T) {
	r := New(fakeTranslator{"fr": "(pas de sujet)"})
	c := asciiList()
	c.Language = "fr"
	res, err := r.Rewrite(c, "")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.Header != "[list] (pas de sujet)" {
		t.Errorf("Header = %q", res.Header)
	}
}

func TestRewriteErrors(t *testing.T) {
	r := New(nil)
	if _, err := r.Rewrite(Context{Prefix: "  "}, "Hello"); !errors.Is(err, ErrNoPrefix) {
		t.Errorf("blank prefix error = %v, want ErrNoPrefix", err)
	}
	if _, err := r.Rewrite(asciiList(), "=?utf-8?b?!!!!?="); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("malformed header error = %v, want ErrMalformedHeader", err)
	}
}

// The ascii path keeps only the first line while the uniform path keeps
// every line. Both behaviours are relied on.
func TestAssembleSubjectLines(t *testing.T) {
	if got := assembleSubject("[l] ", "", "a\nb", false); got != "[l] a" {
		t.Errorf("first line only = %q", got)
	}
	if got := assembleSubject("[l] ", "Re: ", "a\nb", true); got != "[l] Re: ab" {
		t.Errorf("all lines = %q", got)
	}
	if got := assembleSubject("[l] ", "", "", false); got != "[l] " {
		t.Errorf("empty text = %q", got)
	}
}
