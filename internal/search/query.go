// Package search runs full-text queries over the document catalog and
// returns matching document ids in rank order.
//
// Two backends implement Backend:
//
//   - Elastic: go-elasticsearch against an index whose _id is the document id
//   - Local: an immutable in-process fuzzy index built from completed products
//
// Both honour the same Query: a phrase clause and a fuzzy clause over
// weighted fields, restricted to completed documents. Normal mode searches
// title and slug; deep mode adds the parsed content.
package search

import (
	"context"
	"strconv"
	"strings"
)

// Mode selects the searched fields.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeDeep   Mode = "deep"
)

// ParseMode maps user input to a Mode; anything but "deep" is normal.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeDeep)) {
		return ModeDeep
	}
	return ModeNormal
}

// Deep reports whether m is ModeDeep.
func (m Mode) Deep() bool { return m == ModeDeep }

// Field names shared by both backends.
const (
	FieldTitle   = "title"
	FieldSlug    = "slug"
	FieldContent = "parsed_content"
)

// FieldWeight is a searched field and its boost.
type FieldWeight struct {
	Name  string
	Boost float64
}

// String renders the Elasticsearch "field^boost" form.
func (f FieldWeight) String() string {
	return f.Name + "^" + strconv.FormatFloat(f.Boost, 'f', -1, 64)
}

// Query is a backend-neutral search request.
type Query struct {
	Text string
	Mode Mode
	From int
	Size int

	// PhraseFields score exact phrase matches, multiplied by PhraseBoost.
	PhraseFields []FieldWeight
	PhraseBoost  float64
	// Fields score fuzzy term matches.
	Fields        []FieldWeight
	Fuzziness     string
	PrefixLength  int
	MaxExpansions int
	OnlyCompleted bool
}

// NewQuery builds the canonical query for text in mode, returning hits
// [from, from+size).
func NewQuery(text string, mode Mode, from, size int) Query {
	q := Query{
		Text:          strings.TrimSpace(text),
		Mode:          mode,
		From:          from,
		Size:          size,
		PhraseBoost:   5,
		Fuzziness:     "AUTO",
		PrefixLength:  2,
		OnlyCompleted: true,
	}
	if mode.Deep() {
		q.PhraseFields = []FieldWeight{{FieldTitle, 8}, {FieldSlug, 4}, {FieldContent, 2}}
		q.Fields = []FieldWeight{{FieldTitle, 4}, {FieldSlug, 2}, {FieldContent, 1}}
		q.MaxExpansions = 50
		return q
	}
	q.PhraseFields = []FieldWeight{{FieldTitle, 8}, {FieldSlug, 4}}
	q.Fields = []FieldWeight{{FieldTitle, 4}, {FieldSlug, 2}}
	q.MaxExpansions = 20
	return q
}

// Result is one page of hits.
type Result struct {
	// Total is the number of matching documents, not the page length.
	Total int64
	// IDs are document ids for the requested page, best first.
	IDs []string
}

// Backend executes queries.
type Backend interface {
	Search(ctx context.Context, q Query) (Result, error)
}

// autoEdits implements Elasticsearch AUTO fuzziness: 0 edits for terms of
// up to 2 runes, 1 edit for 3 to 5 runes, 2 edits beyond that.
func autoEdits(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}
