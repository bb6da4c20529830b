package subject

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// numberToken matches the printf-style sequence placeholder a list prefix
// may carry, such as %d or %05d.
var numberToken = regexp.MustCompile(`%\d*d`)

// replyPattern matches a run of reply markers at the start of a subject:
// "Re:", "AW:", "SV:", "VS:", each optionally counted as in "Re[2]:".
var replyPattern = regexp.MustCompile(`(?i)^\s*((RE|AW|SV|VS)(\[\d+\])?\s*:\s*)+`)

// canonicalReply replaces any stripped reply marker run.
const canonicalReply = "Re: "

// CompilePrefix builds the pattern matching prefix as it may already appear
// in a subject. Sequence placeholders match any run of digits, so earlier
// numbered prefixes are recognized whatever width they were rendered with.
func CompilePrefix(prefix string) (*regexp.Regexp, error) {
	pattern := regexp.QuoteMeta(prefix)
	if numberToken.MatchString(prefix) {
		pattern = numberToken.ReplaceAllLiteralString(pattern, `\s*\d+\s*`)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile prefix %q: %w", prefix, err)
	}
	return re, nil
}

// FormatPrefix substitutes the post sequence number into prefix. It returns
// prefix unchanged when there is nothing to substitute: no placeholder, more
// than one placeholder, an unsupported % directive, or no sequence number.
func FormatPrefix(prefix string, postID int, hasPostID bool) string {
	if !hasPostID {
		return prefix
	}
	s, ok := formatNumber(prefix, postID)
	if !ok {
		return prefix
	}
	return s
}

func formatNumber(format string, n int) (string, bool) {
	var b strings.Builder
	used := false
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteByte(format[i])
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}
		loc := numberToken.FindStringIndex(format[i:])
		if loc == nil || loc[0] != 0 || used {
			return "", false
		}
		verb := format[i+1 : i+loc[1]-1]
		b.WriteString(padNumber(n, verb))
		used = true
		i += loc[1] - 1
	}
	if !used {
		return "", false
	}
	return b.String(), true
}

// padNumber renders n like printf would for the flags and width in verb,
// where verb is the digit run between % and d.
func padNumber(n int, verb string) string {
	zero := strings.HasPrefix(verb, "0")
	width, _ := strconv.Atoi(verb)
	if zero {
		return fmt.Sprintf("%0*d", width, n)
	}
	return fmt.Sprintf("%*d", width, n)
}

// stripReply removes a leading reply marker run from s and reports whether
// one was found.
func stripReply(s string) (string, bool) {
	loc := replyPattern.FindStringIndex(s)
	if loc == nil {
		return s, false
	}
	return s[loc[1]:], true
}
