package search

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Entry is one searchable document.
type Entry struct {
	DocumentID string
	Title      string
	Slug       string
	Content    string
	Completed  bool
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{}
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps the number of indexed entries.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Index

type doc struct {
	id        string
	completed bool
	// phrase holds the normalized token stream per field, padded with spaces
	// so phrase containment can be tested on token boundaries.
	phrase map[string]string
}

// Index is an immutable fuzzy index over Entries. It is safe for
// concurrent use. The library never logs; callers decide what to report.
type Index struct {
	cfg      config
	docs     []doc
	postings map[string]map[string][]int // field -> term -> doc positions
	vocab    map[string][]string         // field -> sorted terms
}

// NewIndex builds an index from entries in the given order. Insertion
// order breaks score ties.
func NewIndex(entries []Entry, opts ...Option) *Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	ix := &Index{
		cfg:      cfg,
		postings: map[string]map[string][]int{},
		vocab:    map[string][]string{},
	}
	for _, e := range entries {
		if cfg.maxDocs > 0 && len(ix.docs) >= cfg.maxDocs {
			break
		}
		if strings.TrimSpace(e.DocumentID) == "" {
			continue
		}
		pos := len(ix.docs)
		d := doc{id: e.DocumentID, completed: e.Completed, phrase: map[string]string{}}
		for field, text := range map[string]string{FieldTitle: e.Title, FieldSlug: e.Slug, FieldContent: e.Content} {
			toks := tokenize(normalizeWhitespace(text), cfg.stopwords)
			if len(toks) == 0 {
				continue
			}
			d.phrase[field] = " " + strings.Join(toks, " ") + " "
			p := ix.postings[field]
			if p == nil {
				p = map[string][]int{}
				ix.postings[field] = p
			}
			seen := make(map[string]struct{}, len(toks))
			for _, t := range toks {
				if _, dup := seen[t]; dup {
					continue
				}
				seen[t] = struct{}{}
				p[t] = append(p[t], pos)
			}
		}
		ix.docs = append(ix.docs, d)
	}
	for field, p := range ix.postings {
		terms := make([]string, 0, len(p))
		for t := range p {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		ix.vocab[field] = terms
	}
	return ix
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int { return len(ix.docs) }

// Search scores every entry against q and returns the requested page.
func (ix *Index) Search(ctx context.Context, q Query) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	qTokens := uniq(tokenize(q.Text, ix.cfg.stopwords))
	if len(qTokens) == 0 || len(ix.docs) == 0 {
		return Result{}, nil
	}

	scores := make(map[int]float64)

	// Fuzzy clause: per field, each query term contributes its best
	// similarity among the expansions present in the document.
	for _, fw := range q.Fields {
		for _, qt := range qTokens {
			best := make(map[int]float64)
			for _, ex := range ix.expand(fw.Name, qt, q) {
				sim := 1 - float64(ex.dist)/float64(len([]rune(qt))+1)
				for _, pos := range ix.postings[fw.Name][ex.term] {
					if sim > best[pos] {
						best[pos] = sim
					}
				}
			}
			for pos, sim := range best {
				scores[pos] += fw.Boost * sim / float64(len(qTokens))
			}
		}
	}

	// Phrase clause.
	phrase := " " + strings.Join(tokenize(q.Text, ix.cfg.stopwords), " ") + " "
	boost := q.PhraseBoost
	if boost <= 0 {
		boost = 1
	}
	for pos, d := range ix.docs {
		for _, fw := range q.PhraseFields {
			if strings.Contains(d.phrase[fw.Name], phrase) {
				scores[pos] += boost * fw.Boost
			}
		}
	}

	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, 0, len(scores))
	for pos, s := range scores {
		if s <= 0 {
			continue
		}
		if q.OnlyCompleted && !ix.docs[pos].completed {
			continue
		}
		hits = append(hits, hit{pos, s})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].pos < hits[b].pos
	})

	res := Result{Total: int64(len(hits))}
	from := q.From
	if from < 0 {
		from = 0
	}
	if from >= len(hits) || q.Size <= 0 {
		return res, nil
	}
	end := from + q.Size
	if end > len(hits) {
		end = len(hits)
	}
	res.IDs = make([]string, 0, end-from)
	for _, h := range hits[from:end] {
		res.IDs = append(res.IDs, ix.docs[h.pos].id)
	}
	return res, nil
}

type expansion struct {
	term string
	dist int
}

// expand returns vocabulary terms of field within the allowed edit distance
// of qt that share its first PrefixLength runes, closest first, capped at
// MaxExpansions.
func (ix *Index) expand(field, qt string, q Query) []expansion {
	terms := ix.vocab[field]
	if len(terms) == 0 {
		return nil
	}
	maxEdits := fuzziness(q.Fuzziness, qt)
	if maxEdits == 0 {
		if _, ok := ix.postings[field][qt]; ok {
			return []expansion{{qt, 0}}
		}
		return nil
	}

	qr := []rune(qt)
	prefix := qt
	if q.PrefixLength < len(qr) {
		prefix = string(qr[:max(q.PrefixLength, 0)])
	}

	var out []expansion
	for i := sort.SearchStrings(terms, prefix); i < len(terms) && strings.HasPrefix(terms[i], prefix); i++ {
		t := terms[i]
		if d := editDistance(qt, t, maxEdits); d <= maxEdits {
			out = append(out, expansion{t, d})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].dist < out[b].dist })
	if q.MaxExpansions > 0 && len(out) > q.MaxExpansions {
		out = out[:q.MaxExpansions]
	}
	return out
}

func fuzziness(f, term string) int {
	switch strings.ToUpper(strings.TrimSpace(f)) {
	case "", "AUTO":
		return autoEdits(term)
	}
	n, err := strconv.Atoi(f)
	if err != nil || n < 0 {
		return autoEdits(term)
	}
	if n > 2 {
		n = 2
	}
	return n
}

// editDistance is the optimal string alignment distance between a and b
// (insertions, deletions, substitutions and adjacent transpositions), or
// limit+1 when the lengths alone rule a match out.
func editDistance(a, b string, limit int) int {
	if d := utf8.RuneCountInString(a) - utf8.RuneCountInString(b); d > limit || -d > limit {
		return limit + 1
	}
	return edlib.OSADamerauLevenshteinDistance(a, b)
}

// ----------------------------------------------------------------------------
// Local backend

// Loader returns the entries to index.
type Loader func(ctx context.Context) ([]Entry, error)

// Local is a Backend over an Index that can be rebuilt while serving.
type Local struct {
	load Loader
	opts []Option
	cur  atomic.Pointer[Index]
}

// NewLocal returns an empty backend; call Reload to populate it.
func NewLocal(load Loader, opts ...Option) *Local {
	l := &Local{load: load, opts: opts}
	l.cur.Store(NewIndex(nil, opts...))
	return l
}

// Reload rebuilds the index from the loader and swaps it in atomically.
func (l *Local) Reload(ctx context.Context) (int, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	ix := NewIndex(entries, l.opts...)
	l.cur.Store(ix)
	return ix.Len(), nil
}

// Search queries the current index.
func (l *Local) Search(ctx context.Context, q Query) (Result, error) {
	return l.cur.Load().Search(ctx, q)
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenize lowercases s and returns its words in order, without stop words.
func tokenize(s string, stop map[string]struct{}) []string {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := words[:0]
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out = append(out, w)
	}
	return out
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
