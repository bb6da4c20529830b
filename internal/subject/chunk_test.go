package subject

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []Chunk
	}{
		{
			name:  "plain",
			value: "Hello world",
			want:  []Chunk{{Text: "Hello world", Known: true}},
		},
		{
			name:  "empty",
			value: "",
			want:  []Chunk{{Text: "", Known: true}},
		},
		{
			name:  "plain folded kept intact",
			value: "Hello\r\n world",
			want:  []Chunk{{Text: "Hello\r\n world", Known: true}},
		},
		{
			name:  "encoded then plain",
			value: "=?utf-8?q?caf=C3=A9?= au lait",
			want: []Chunk{
				{Text: "café", Charset: "utf-8", Known: true},
				{Text: " au lait", Known: true},
			},
		},
		{
			name:  "adjacent words collapse",
			value: "=?UTF-8?Q?a?= =?utf-8?q?b?=",
			want:  []Chunk{{Text: "ab", Charset: "utf-8", Known: true}},
		},
		{
			name:  "base64 without padding",
			value: "=?utf-8?b?Y2Fmw6k?=",
			want:  []Chunk{{Text: "café", Charset: "utf-8", Known: true}},
		},
		{
			name:  "latin1 word",
			value: "=?iso-8859-1?q?caf=E9?=",
			want:  []Chunk{{Text: "café", Charset: "iso-8859-1", Known: true}},
		},
		{
			name:  "unknown charset kept raw",
			value: "=?x-bogus?q?abc?=",
			want:  []Chunk{{Charset: "x-bogus"}},
		},
		{
			name:  "8-bit utf-8 text",
			value: "café",
			want:  []Chunk{{Text: "café", Charset: "utf-8", Known: true}},
		},
		{
			name:  "8-bit garbage",
			value: "caf\xe9",
			want:  []Chunk{{Charset: unknown8bit}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.value)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", tt.value, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Decode(%q) returned %d chunks, want %d: %+v", tt.value, len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].Text != tt.want[i].Text || got[i].Charset != tt.want[i].Charset || got[i].Known != tt.want[i].Known {
					t.Errorf("chunk %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecodeKeepsRawBytes(t *testing.T) {
	chunks, err := Decode("=?x-bogus?q?a=FFb?=")
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if string(chunks[0].Raw) != "a\xffb" {
		t.Errorf("Raw = %q, want %q", chunks[0].Raw, "a\xffb")
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode("=?utf-8?b?!!!!?=")
	if !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("Decode error = %v, want ErrMalformedHeader", err)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		chunks []Chunk
		want   string
	}{
		{
			name:   "ascii then encoded gets a space",
			chunks: []Chunk{TextChunk("Hello", ""), TextChunk("мир", "utf-8")},
			want:   "Hello мир",
		},
		{
			name:   "existing space is reused",
			chunks: []Chunk{TextChunk("Hello ", ""), TextChunk("мир", "utf-8")},
			want:   "Hello мир",
		},
		{
			name:   "encoded then ascii",
			chunks: []Chunk{TextChunk("café", "utf-8"), TextChunk("au lait", "")},
			want:   "café au lait",
		},
		{
			name:   "two charsets join directly",
			chunks: []Chunk{TextChunk("café", "iso-8859-1"), TextChunk("привет", "koi8-r")},
			want:   "caféпривет",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.chunks); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContinuationWS(t *testing.T) {
	tests := []struct {
		value string
		want  byte
	}{
		{"Hello", '\t'},
		{"Hello\r\n world", ' '},
		{"Hello\r\n\tworld", '\t'},
		{"Hello\r\nworld", '\t'},
	}
	for _, tt := range tests {
		chunks, err := Decode(tt.value)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", tt.value, err)
		}
		if got := ContinuationWS(chunks); got != tt.want {
			t.Errorf("ContinuationWS(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\r\nb\nc\rd", []string{"a", "b", "c", "d"}},
		{"a\u2028b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := splitLines(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
				break
			}
		}
	}
}
