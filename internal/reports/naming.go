package reports

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slug turns a report type name into a file name prefix: accents are
// stripped, whitespace becomes "_" and anything else outside [A-Za-z0-9_-] is
// dropped. An empty result falls back to the inventory type.
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		plain = name
	}
	var b strings.Builder
	for _, r := range plain {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'):
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return Slug(InventoryReportType)
	}
	return b.String()
}

// FileName builds "{type}_{YYYYMMDD_HHMMSS}.{ext}".
func FileName(reportType string, at time.Time, format Format) string {
	return Slug(reportType) + "_" + at.Format(TimestampLayout) + "." + format.Extension()
}
