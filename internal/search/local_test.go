package search

import (
	"context"
	"errors"
	"testing"
)

func catalog() []Entry {
	return []Entry{
		{DocumentID: "d1", Title: "Linear Algebra", Slug: "linear-algebra", Content: "vectors and matrices", Completed: true},
		{DocumentID: "d2", Title: "Algebra Basics", Slug: "algebra-basics", Content: "groups rings fields", Completed: true},
		{DocumentID: "d3", Title: "Organic Chemistry", Slug: "organic-chemistry", Content: "matrices of reactions", Completed: true},
		{DocumentID: "d4", Title: "Algebra Draft", Slug: "algebra-draft", Content: "", Completed: false},
	}
}

func TestIndex_ExactAndOnlyCompleted(t *testing.T) {
	ix := NewIndex(catalog())
	if ix.Len() != 4 {
		t.Fatalf("Len = %d", ix.Len())
	}
	res, err := ix.Search(context.Background(), NewQuery("algebra", ModeNormal, 0, 10))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 2 || len(res.IDs) != 2 {
		t.Fatalf("expected two completed hits, got %+v", res)
	}
	for _, id := range res.IDs {
		if id == "d4" {
			t.Fatal("incomplete document must be filtered")
		}
	}

	q := NewQuery("algebra", ModeNormal, 0, 10)
	q.OnlyCompleted = false
	res, _ = ix.Search(context.Background(), q)
	if res.Total != 3 {
		t.Fatalf("without filter: %+v", res)
	}
}

func TestIndex_PhraseRanksFirst(t *testing.T) {
	ix := NewIndex(catalog())
	res, _ := ix.Search(context.Background(), NewQuery("algebra basics", ModeNormal, 0, 10))
	if len(res.IDs) == 0 || res.IDs[0] != "d2" {
		t.Fatalf("phrase match should rank first: %+v", res)
	}
}

func TestIndex_FuzzyWithPrefix(t *testing.T) {
	ix := NewIndex(catalog())
	ctx := context.Background()

	// One substitution after the shared prefix.
	res, _ := ix.Search(ctx, NewQuery("algebpa", ModeNormal, 0, 10))
	if res.Total != 2 {
		t.Fatalf("fuzzy match expected 2 hits, got %+v", res)
	}
	// Typo inside the two-rune prefix never matches.
	res, _ = ix.Search(ctx, NewQuery("elgebra", ModeNormal, 0, 10))
	if res.Total != 0 {
		t.Fatalf("prefix typo must not match, got %+v", res)
	}
	// Short terms require exact matches.
	res, _ = ix.Search(ctx, NewQuery("al", ModeNormal, 0, 10))
	if res.Total != 0 {
		t.Fatalf("two-rune term must match exactly, got %+v", res)
	}
}

func TestIndex_DeepSearchesContent(t *testing.T) {
	ix := NewIndex(catalog())
	ctx := context.Background()

	normal, _ := ix.Search(ctx, NewQuery("matrices", ModeNormal, 0, 10))
	if normal.Total != 0 {
		t.Fatalf("normal mode must ignore content: %+v", normal)
	}
	deep, _ := ix.Search(ctx, NewQuery("matrices", ModeDeep, 0, 10))
	if deep.Total != 2 {
		t.Fatalf("deep mode should match content: %+v", deep)
	}
	// Equal scores keep insertion order.
	if deep.IDs[0] != "d1" || deep.IDs[1] != "d3" {
		t.Fatalf("tie order: %v", deep.IDs)
	}
}

func TestIndex_Paging(t *testing.T) {
	var entries []Entry
	for i := 0; i < 25; i++ {
		entries = append(entries, Entry{DocumentID: string(rune('a'+i)) + "-doc", Title: "physics notes", Completed: true})
	}
	ix := NewIndex(entries)
	ctx := context.Background()

	p3, _ := ix.Search(ctx, NewQuery("physics", ModeNormal, 20, 10))
	if p3.Total != 25 || len(p3.IDs) != 5 {
		t.Fatalf("last page: %+v", p3)
	}
	p4, _ := ix.Search(ctx, NewQuery("physics", ModeNormal, 30, 10))
	if p4.Total != 25 || len(p4.IDs) != 0 {
		t.Fatalf("beyond range must keep the true total: %+v", p4)
	}
}

func TestIndex_EmptyQueryAndOptions(t *testing.T) {
	ix := NewIndex(catalog(), WithStopwords([]string{" The ", ""}), WithMaxDocs(2))
	if ix.Len() != 2 {
		t.Fatalf("WithMaxDocs: Len = %d", ix.Len())
	}
	res, err := ix.Search(context.Background(), NewQuery("  the  ", ModeNormal, 0, 10))
	if err != nil || res.Total != 0 || res.IDs != nil {
		t.Fatalf("stop-word-only query: %+v %v", res, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ix.Search(ctx, NewQuery("algebra", ModeNormal, 0, 10)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b  string
		limit int
		want  int
	}{
		{"kitten", "sitting", 5, 3},
		{"abc", "abc", 2, 0},
		{"abc", "abd", 2, 1},
		{"abc", "abcdef", 2, 3},
		{"math", "maht", 1, 1},
		{"ca", "abc", 2, 3},
		{"алгебра", "алгерба", 2, 1},
	}
	for _, tc := range cases {
		if got := editDistance(tc.a, tc.b, tc.limit); got != tc.want {
			t.Fatalf("editDistance(%q,%q,%d) = %d; want %d", tc.a, tc.b, tc.limit, got, tc.want)
		}
	}
}

func TestIndex_FuzzyTransposition(t *testing.T) {
	ix := NewIndex([]Entry{
		{DocumentID: "m", Title: "Math", Slug: "math", Completed: true},
	})
	ctx := context.Background()

	// A swap of adjacent runes is one edit, within AUTO's budget for four runes.
	res, _ := ix.Search(ctx, NewQuery("maht", ModeNormal, 0, 10))
	if res.Total != 1 || res.IDs[0] != "m" {
		t.Fatalf("transposed query should match, got %+v", res)
	}

	// The swap touches the two-rune prefix, which must match exactly.
	res, _ = ix.Search(ctx, NewQuery("mtah", ModeNormal, 0, 10))
	if res.Total != 0 {
		t.Fatalf("prefix mismatch must not match, got %+v", res)
	}
}

func TestLocal_Reload(t *testing.T) {
	calls := 0
	l := NewLocal(func(context.Context) ([]Entry, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("db down")
		}
		return catalog(), nil
	})
	ctx := context.Background()

	if res, _ := l.Search(ctx, NewQuery("algebra", ModeNormal, 0, 10)); res.Total != 0 {
		t.Fatalf("empty backend before reload: %+v", res)
	}
	n, err := l.Reload(ctx)
	if err != nil || n != 4 {
		t.Fatalf("Reload: n=%d err=%v", n, err)
	}
	if _, err := l.Reload(ctx); err == nil {
		t.Fatal("expected loader error")
	}
	// A failed reload keeps serving the previous index.
	if res, _ := l.Search(ctx, NewQuery("algebra", ModeNormal, 0, 10)); res.Total != 2 {
		t.Fatalf("previous index lost: %+v", res)
	}
}
