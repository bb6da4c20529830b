package i18n

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestTranslate(t *testing.T) {
	c := NewCatalog()

	tests := []struct {
		lang string
		want string
	}{
		{"en", "(no subject)"},
		{"", "(no subject)"},
		{"fr", "(pas de sujet)"},
		{"DE", "(kein Betreff)"},
		{"pt_BR", "(sem assunto)"},
		{"pt-BR", "(sem assunto)"},
		{"es_MX", "(sin asunto)"},
		{"zh_CN", "(无主题)"},
		{"xx", "(no subject)"},
	}
	for _, tt := range tests {
		if got := c.Translate(tt.lang, "(no subject)"); got != tt.want {
			t.Errorf("Translate(%q) = %q, want %q", tt.lang, got, tt.want)
		}
	}

	if got := c.Translate("fr", "unknown id"); got != "unknown id" {
		t.Errorf("Translate of unknown id = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte(`
fr:
  "(no subject)": "(sans objet)"
eo:
  "(no subject)": "(sen temo)"
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	c := NewCatalog()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := c.Translate("fr", "(no subject)"); got != "(sans objet)" {
		t.Errorf("override not applied, got %q", got)
	}
	if got := c.Translate("eo", "(no subject)"); got != "(sen temo)" {
		t.Errorf("new language not added, got %q", got)
	}
	if got := c.Translate("de", "(no subject)"); got != "(kein Betreff)" {
		t.Errorf("built-in translation lost, got %q", got)
	}

	langs := c.Languages()
	sort.Strings(langs)
	if i := sort.SearchStrings(langs, "eo"); i >= len(langs) || langs[i] != "eo" {
		t.Errorf("Languages() = %v, missing eo", langs)
	}
}

func TestLoadFileErrors(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile of missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("fr: [not, a, map]"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadFile(path); err == nil {
		t.Error("LoadFile of malformed catalog should fail")
	}
}

func TestCharset(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"en", "us-ascii"},
		{"", "us-ascii"},
		{"fr", "iso-8859-1"},
		{"ru", "koi8-r"},
		{"ja", "euc-jp"},
		{"pt_BR", "iso-8859-1"},
		{"xx", "utf-8"},
	}
	for _, tt := range tests {
		if got := Charset(tt.lang); got != tt.want {
			t.Errorf("Charset(%q) = %q, want %q", tt.lang, got, tt.want)
		}
	}
}
