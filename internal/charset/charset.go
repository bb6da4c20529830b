// Package charset resolves MIME charset labels and converts header text
// between UTF-8 and the labelled encodings.
package charset

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Well-known labels.
const (
	ASCII = "us-ascii"
	UTF8  = "utf-8"
)

var (
	// ErrUnknown is returned for a charset label that cannot be resolved.
	ErrUnknown = errors.New("unknown charset")
	// ErrUnencodable is returned when text has characters the charset cannot represent.
	ErrUnencodable = errors.New("text not representable in charset")
)

var encodings = map[string]encoding.Encoding{
	// ISO character sets
	"iso-8859-1":  charmap.ISO8859_1,
	"iso-8859-2":  charmap.ISO8859_2,
	"iso-8859-3":  charmap.ISO8859_3,
	"iso-8859-4":  charmap.ISO8859_4,
	"iso-8859-5":  charmap.ISO8859_5,
	"iso-8859-6":  charmap.ISO8859_6,
	"iso-8859-7":  charmap.ISO8859_7,
	"iso-8859-8":  charmap.ISO8859_8,
	"iso-8859-9":  charmap.ISO8859_9,
	"iso-8859-10": charmap.ISO8859_10,
	"iso-8859-13": charmap.ISO8859_13,
	"iso-8859-14": charmap.ISO8859_14,
	"iso-8859-15": charmap.ISO8859_15,
	"iso-8859-16": charmap.ISO8859_16,

	// Windows character sets
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"windows-1253": charmap.Windows1253,
	"windows-1254": charmap.Windows1254,
	"windows-1255": charmap.Windows1255,
	"windows-1256": charmap.Windows1256,
	"windows-1257": charmap.Windows1257,
	"windows-1258": charmap.Windows1258,
	"windows-874":  charmap.Windows874,

	"koi8-r":    charmap.KOI8R,
	"koi8-u":    charmap.KOI8U,
	"macintosh": charmap.Macintosh,

	"shift_jis":   japanese.ShiftJIS,
	"euc-jp":      japanese.EUCJP,
	"iso-2022-jp": japanese.ISO2022JP,

	"euc-kr": korean.EUCKR,

	"gb2312":  simplifiedchinese.GBK, // GBK is a superset of GB2312
	"gbk":     simplifiedchinese.GBK,
	"gb18030": simplifiedchinese.GB18030,
	"big5":    traditionalchinese.Big5,

	"utf-16be": unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	"utf-16le": unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16":   unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
}

// Alias mappings for non-standard charset names
var aliases = map[string]string{
	"ascii":      ASCII,
	"us_ascii":   ASCII,
	"646":        ASCII,
	"utf8":       UTF8,
	"latin1":     "iso-8859-1",
	"latin-1":    "iso-8859-1",
	"latin2":     "iso-8859-2",
	"latin3":     "iso-8859-3",
	"latin4":     "iso-8859-4",
	"latin5":     "iso-8859-9",
	"latin6":     "iso-8859-10",
	"latin7":     "iso-8859-13",
	"latin8":     "iso-8859-14",
	"latin9":     "iso-8859-15",
	"latin10":    "iso-8859-16",
	"cp1250":     "windows-1250",
	"cp1251":     "windows-1251",
	"cp1252":     "windows-1252",
	"cp1253":     "windows-1253",
	"cp1254":     "windows-1254",
	"cp1255":     "windows-1255",
	"cp1256":     "windows-1256",
	"cp1257":     "windows-1257",
	"cp1258":     "windows-1258",
	"cp874":      "windows-874",
	"koi8r":      "koi8-r",
	"koi8u":      "koi8-u",
	"shift-jis":  "shift_jis",
	"sjis":       "shift_jis",
	"x-sjis":     "shift_jis",
	"ms_kanji":   "shift_jis",
	"csshiftjis": "shift_jis",
	"eucjp":      "euc-jp",
	"iso2022jp":  "iso-2022-jp",
	"euckr":      "euc-kr",
	"ks_c_5601":  "euc-kr",
	"cp936":      "gbk",
	"ms936":      "gbk",
	"big-5":      "big5",
	"cp950":      "big5",
}

// Normalize lower-cases a charset label, drops an RFC 2231 language suffix
// and maps known aliases to their canonical name.
func Normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if i := strings.IndexByte(label, '*'); i >= 0 {
		label = label[:i]
	}
	if canonical, ok := aliases[label]; ok {
		return canonical
	}
	return label
}

// IsASCII reports whether label names a 7-bit charset. The empty label
// stands for unencoded header text.
func IsASCII(label string) bool {
	switch Normalize(label) {
	case "", ASCII:
		return true
	}
	return false
}

// Equal reports whether two labels name the same charset.
func Equal(a, b string) bool {
	if IsASCII(a) && IsASCII(b) {
		return true
	}
	return Normalize(a) == Normalize(b)
}

// Lookup returns the encoding for label. ASCII and UTF-8 return a nil
// encoding and no error; both are handled without transcoding.
func Lookup(label string) (encoding.Encoding, error) {
	name := Normalize(label)
	switch name {
	case "", ASCII, UTF8:
		return nil, nil
	}
	if enc, ok := encodings[name]; ok {
		return enc, nil
	}
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil || enc == nil {
		enc, err = ianaindex.IANA.Encoding(name)
	}
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(name)
	}
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, label)
	}
	return enc, nil
}

// Known reports whether label can be resolved.
func Known(label string) bool {
	_, err := Lookup(label)
	return err == nil
}

// Decode converts b from the charset named by label into UTF-8.
func Decode(label string, b []byte) (string, error) {
	name := Normalize(label)
	if name == UTF8 {
		if !utf8.Valid(b) {
			return "", fmt.Errorf("invalid utf-8 in %s text", name)
		}
		return string(b), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		// Mislabelled 8-bit data in an ASCII word is read as windows-1252.
		if isASCIIBytes(b) {
			return string(b), nil
		}
		enc = charmap.Windows1252
	}
	s, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(s), nil
}

// Encode converts UTF-8 text into the charset named by label.
func Encode(label, s string) ([]byte, error) {
	name := Normalize(label)
	switch name {
	case UTF8:
		return []byte(s), nil
	case "", ASCII:
		if !isASCIIBytes([]byte(s)) {
			return nil, fmt.Errorf("%w: %s", ErrUnencodable, ASCII)
		}
		return []byte(s), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnencodable, name, err)
	}
	return b, nil
}

// CanEncode reports whether s is representable in the charset named by label.
func CanEncode(label, s string) bool {
	_, err := Encode(label, s)
	return err == nil
}

func isASCIIBytes(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
