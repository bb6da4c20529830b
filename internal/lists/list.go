// Package lists holds mailing list settings and the per-list post sequence.
package lists

import (
	"github.com/fenilsonani/listmunge/internal/config"
	"github.com/fenilsonani/listmunge/internal/i18n"
	"github.com/fenilsonani/listmunge/internal/subject"
	"github.com/fenilsonani/listmunge/internal/validation"
)

// Language is a list's preferred language.
type Language struct {
	Code    string
	Charset string
}

// List is a mailing list as seen by the rewrite pipeline.
type List struct {
	Name              string
	ListID            string
	SubjectPrefix     string
	PreferredLanguage Language
	// PostID is the sequence number of the next post. PostIDKnown is false
	// when no sequence store backs the list.
	PostID      int
	PostIDKnown bool
}

// FromConfig builds a List from its configuration. The charset defaults
// to the preferred language's charset.
func FromConfig(c config.ListConfig) *List {
	code := c.PreferredLanguage.Code
	if code == "" {
		code = i18n.DefaultLanguage
	}
	cs := c.PreferredLanguage.Charset
	if cs == "" {
		cs = i18n.Charset(code)
	}
	return &List{
		Name:              c.Name,
		ListID:            validation.BareListID(c.ListID),
		SubjectPrefix:     c.SubjectPrefix,
		PreferredLanguage: Language{Code: code, Charset: cs},
		PostID:            c.PostID,
	}
}

// SubjectContext returns the settings the subject rewriter needs.
func (l *List) SubjectContext() subject.Context {
	return subject.Context{
		Prefix:    l.SubjectPrefix,
		Charset:   l.PreferredLanguage.Charset,
		Language:  l.PreferredLanguage.Code,
		PostID:    l.PostID,
		HasPostID: l.PostIDKnown,
	}
}

// Clone returns a copy of l.
func (l *List) Clone() *List {
	c := *l
	return &c
}
