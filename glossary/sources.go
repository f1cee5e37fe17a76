package glossary

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Source is one scrapeable glossary site. URLTemplate receives the
// URL-escaped term via %s. Selectors are tried in order; the first whose
// text passes the health check wins.
type Source struct {
	Name        string
	URLTemplate string
	Selectors   []string
}

// DefaultSources returns the built-in source order. Earlier sources are
// preferred; later ones only run when the earlier ones fail.
func DefaultSources() []Source {
	return []Source{
		{
			Name:        "slb",
			URLTemplate: "https://glossary.slb.com/en/terms/%s",
			Selectors: []string{
				"div.definition-text",
				"div.content-container p",
				"article p",
			},
		},
		{
			Name:        "spe",
			URLTemplate: "https://petrowiki.spe.org/%s",
			Selectors: []string{
				"div.mw-parser-output > p",
				"#mw-content-text p",
			},
		},
		{
			Name:        "aapg",
			URLTemplate: "https://wiki.aapg.org/%s",
			Selectors: []string{
				"div.mw-parser-output > p",
				"#bodyContent p",
			},
		},
	}
}

// URL builds the lookup URL for term.
func (s Source) URL(term string) string {
	return fmt.Sprintf(s.URLTemplate, url.PathEscape(term))
}

// NormalizeTerm lowercases, strips punctuation and collapses whitespace so
// "Porosity?", "  porosity " and "porosity" share a cache entry. Punctuation
// becomes a word boundary, so "gamma-ray" normalizes to "gamma ray".
func NormalizeTerm(term string) string {
	var b strings.Builder
	b.Grow(len(term))
	for _, r := range strings.ToLower(term) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
