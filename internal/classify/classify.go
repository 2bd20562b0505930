// Package classify builds CSS class names for map features.
package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/wagemap/internal/geo"
	"github.com/sells-group/wagemap/internal/wages"
)

// NoData is the class of a county missing from the wage series.
const NoData = "no-data"

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonWord    = regexp.MustCompile(`[^\w-]+`)
	dashes     = regexp.MustCompile(`-{2,}`)
)

// Slug lowercases s, folds accents to ASCII, turns whitespace into dashes and
// drops everything else that is not a word character.
func Slug(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = whitespace.ReplaceAllString(s, "-")
	s = nonWord.ReplaceAllString(s, "")
	s = dashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Feature classes a boundary feature by its ID and each property as
// "key-value", in key order.
func Feature(f *geo.Feature) string {
	var c []string
	if f.ID != "" {
		c = appendSlug(c, f.ID)
	}
	keys := make([]string, 0, len(f.Properties))
	for k := range f.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c = appendSlug(c, k+"-"+formatValue(f.Properties[k]))
	}
	return strings.Join(c, " ")
}

// County classes a county by its state and its quintile in frame, or NoData
// when the series has no row for it.
func County(table *wages.Table, f *geo.Feature, frame string) string {
	row, ok := table.Lookup(f.ID)
	if !ok {
		return NoData
	}
	var c []string
	c = appendSlug(c, row.State)
	if q, ok := row.Quintile(frame); ok {
		c = append(c, "quintile"+Slug(q))
	} else {
		c = append(c, NoData)
	}
	return strings.Join(c, " ")
}

func appendSlug(c []string, s string) []string {
	if slug := Slug(s); slug != "" {
		return append(c, slug)
	}
	return c
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}
