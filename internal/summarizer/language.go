package summarizer

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is used when a request names no language
const DefaultLanguage = "te"

var supportedLanguages = []language.Base{
	language.MustParseBase("en"),
	language.MustParseBase("hi"),
	language.MustParseBase("te"),
	language.MustParseBase("ta"),
	language.MustParseBase("bn"),
	language.MustParseBase("mr"),
	language.MustParseBase("gu"),
	language.MustParseBase("kn"),
	language.MustParseBase("ml"),
	language.MustParseBase("pa"),
}

var regionIndia = language.MustParseRegion("IN")

// Language is one of the summary output languages
type Language struct {
	base language.Base
}

// ParseLanguage accepts a BCP 47 tag ("te", "te-IN", "hi_IN") and returns
// the supported language it names. An empty string yields the default.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultLanguage
	}

	tag, err := language.Parse(s)
	if err != nil {
		return Language{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
	}

	base, _ := tag.Base()
	for _, b := range supportedLanguages {
		if b == base {
			return Language{base: b}, nil
		}
	}
	return Language{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// SupportedLanguages lists every output language in display order
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	for i, b := range supportedLanguages {
		out[i] = Language{base: b}
	}
	return out
}

// Code returns the two-letter language code
func (l Language) Code() string {
	if l.IsZero() {
		return DefaultLanguage
	}
	return l.base.String()
}

// TargetCode returns the regional code the speech backend expects, e.g. "te-IN"
func (l Language) TargetCode() string {
	tag, err := language.Compose(l.tag(), regionIndia)
	if err != nil {
		return l.Code() + "-IN"
	}
	return tag.String()
}

// Name returns the English name of the language
func (l Language) Name() string {
	return display.English.Languages().Name(l.tag())
}

// NativeName returns the name of the language in that language
func (l Language) NativeName() string {
	return display.Self.Name(l.tag())
}

// IsZero reports whether the language was never set
func (l Language) IsZero() bool {
	return l.base == language.Base{}
}

func (l Language) tag() language.Tag {
	return language.Make(l.Code())
}

// TargetLanguageCode resolves a language code to its regional form
func TargetLanguageCode(code string) (string, error) {
	l, err := ParseLanguage(code)
	if err != nil {
		return "", err
	}
	return l.TargetCode(), nil
}
