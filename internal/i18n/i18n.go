// Package i18n provides the translated strings used when rewriting
// messages, along with the default charset of each list language.
package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when a list has no language configured.
const DefaultLanguage = "en"

// builtin holds the translations shipped with the binary.
var builtin = map[string]map[string]string{
	"ca":    {"(no subject)": "(sense assumpte)"},
	"cs":    {"(no subject)": "(bez předmětu)"},
	"da":    {"(no subject)": "(intet emne)"},
	"de":    {"(no subject)": "(kein Betreff)"},
	"el":    {"(no subject)": "(χωρίς θέμα)"},
	"es":    {"(no subject)": "(sin asunto)"},
	"fi":    {"(no subject)": "(ei aihetta)"},
	"fr":    {"(no subject)": "(pas de sujet)"},
	"hu":    {"(no subject)": "(nincs tárgy)"},
	"it":    {"(no subject)": "(nessun oggetto)"},
	"ja":    {"(no subject)": "(件名なし)"},
	"ko":    {"(no subject)": "(제목 없음)"},
	"nb":    {"(no subject)": "(uten emne)"},
	"nl":    {"(no subject)": "(geen onderwerp)"},
	"pl":    {"(no subject)": "(brak tematu)"},
	"pt":    {"(no subject)": "(sem assunto)"},
	"pt_br": {"(no subject)": "(sem assunto)"},
	"ru":    {"(no subject)": "(без темы)"},
	"sv":    {"(no subject)": "(inget ämne)"},
	"tr":    {"(no subject)": "(konu yok)"},
	"uk":    {"(no subject)": "(без теми)"},
	"zh_cn": {"(no subject)": "(无主题)"},
	"zh_tw": {"(no subject)": "(無主題)"},
}

// charsets maps language codes to the charset lists in that language use
// unless configured otherwise.
var charsets = map[string]string{
	"en":    "us-ascii",
	"ca":    "iso-8859-1",
	"da":    "iso-8859-1",
	"de":    "iso-8859-1",
	"es":    "iso-8859-1",
	"fi":    "iso-8859-1",
	"fr":    "iso-8859-1",
	"it":    "iso-8859-1",
	"nb":    "iso-8859-1",
	"nl":    "iso-8859-1",
	"pt":    "iso-8859-1",
	"pt_br": "iso-8859-1",
	"sv":    "iso-8859-1",
	"cs":    "iso-8859-2",
	"hu":    "iso-8859-2",
	"pl":    "iso-8859-2",
	"el":    "iso-8859-7",
	"tr":    "iso-8859-9",
	"ru":    "koi8-r",
	"uk":    "koi8-u",
	"ja":    "euc-jp",
	"ko":    "euc-kr",
	"zh_cn": "gb2312",
	"zh_tw": "big5",
}

// Catalog translates message ids. The zero value is not usable; use
// NewCatalog.
type Catalog struct {
	mu       sync.RWMutex
	messages map[string]map[string]string
}

// NewCatalog returns a catalog holding the built-in translations.
func NewCatalog() *Catalog {
	c := &Catalog{messages: make(map[string]map[string]string, len(builtin))}
	c.merge(builtin)
	return c
}

// LoadFile reads translation overrides from a YAML file mapping language
// codes to message ids to translations:
//
//	fr:
//	  "(no subject)": "(sans objet)"
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	var messages map[string]map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	c.merge(messages)
	return nil
}

func (c *Catalog) merge(messages map[string]map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for lang, m := range messages {
		key := normalize(lang)
		dst, ok := c.messages[key]
		if !ok {
			dst = make(map[string]string, len(m))
			c.messages[key] = dst
		}
		for id, s := range m {
			dst[id] = s
		}
	}
}

// Translate returns the translation of msgid for lang. A regional code
// such as pt_BR falls back to its base language; msgid itself is returned
// when no translation exists.
func (c *Catalog) Translate(lang, msgid string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range candidates(lang) {
		if s, ok := c.messages[key][msgid]; ok && s != "" {
			return s
		}
	}
	return msgid
}

// Languages returns the language codes the catalog has translations for.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	langs := make([]string, 0, len(c.messages))
	for lang := range c.messages {
		langs = append(langs, lang)
	}
	return langs
}

// Charset returns the default charset for lang, utf-8 when the language is
// not known.
func Charset(lang string) string {
	for _, key := range candidates(lang) {
		if cs, ok := charsets[key]; ok {
			return cs
		}
	}
	return "utf-8"
}

func candidates(lang string) []string {
	key := normalize(lang)
	if key == "" {
		return []string{DefaultLanguage}
	}
	if i := strings.IndexByte(key, '_'); i > 0 {
		return []string{key, key[:i]}
	}
	return []string{key}
}

func normalize(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "-", "_")
}
