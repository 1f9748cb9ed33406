package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeES(t *testing.T, status int, resp string, got *map[string]any) *Elastic {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/_search") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, got)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)

	e, err := NewElastic([]string{srv.URL}, "products")
	if err != nil {
		t.Fatalf("NewElastic: %v", err)
	}
	return e
}

func TestBody_NormalAndDeep(t *testing.T) {
	b := Body(NewQuery("algebra", ModeNormal, 20, 10))
	if b["from"] != 20 || b["size"] != 10 || b["_source"] != false {
		t.Fatalf("paging keys: %+v", b)
	}
	boolQ := b["query"].(map[string]any)["bool"].(map[string]any)
	should := boolQ["should"].([]any)
	if len(should) != 2 {
		t.Fatalf("expected phrase and fuzzy clauses, got %d", len(should))
	}
	phrase := should[0].(map[string]any)["multi_match"].(map[string]any)
	if phrase["type"] != "phrase" || phrase["boost"] != 5.0 {
		t.Fatalf("phrase clause: %+v", phrase)
	}
	fuzzy := should[1].(map[string]any)["multi_match"].(map[string]any)
	if fuzzy["fuzziness"] != "AUTO" || fuzzy["prefix_length"] != 2 || fuzzy["max_expansions"] != 20 {
		t.Fatalf("fuzzy clause: %+v", fuzzy)
	}
	fields := fuzzy["fields"].([]string)
	if len(fields) != 2 || fields[0] != "title^4" || fields[1] != "slug^2" {
		t.Fatalf("normal fields: %v", fields)
	}
	if _, ok := boolQ["filter"]; !ok {
		t.Fatal("completed filter missing")
	}

	deep := Body(NewQuery("algebra", ModeDeep, 0, 10))
	dfuzzy := deep["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)[1].(map[string]any)["multi_match"].(map[string]any)
	dfields := dfuzzy["fields"].([]string)
	if len(dfields) != 3 || dfields[2] != "parsed_content^1" || dfuzzy["max_expansions"] != 50 {
		t.Fatalf("deep fuzzy clause: %+v", dfuzzy)
	}
}

func TestElastic_Search(t *testing.T) {
	var sent map[string]any
	e := fakeES(t, http.StatusOK, `{"hits":{"total":{"value":23,"relation":"eq"},"hits":[{"_id":"d2"},{"_id":"d1"}]}}`, &sent)

	res, err := e.Search(context.Background(), NewQuery("algebra", ModeNormal, 10, 10))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 23 || len(res.IDs) != 2 || res.IDs[0] != "d2" || res.IDs[1] != "d1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if sent["from"] != float64(10) || sent["size"] != float64(10) {
		t.Fatalf("request body paging: %+v", sent)
	}
}

func TestElastic_ErrorStatus(t *testing.T) {
	e := fakeES(t, http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`, nil)
	_, err := e.Search(context.Background(), NewQuery("x", ModeNormal, 0, 10))
	if err == nil || !strings.Contains(err.Error(), "parsing_exception") {
		t.Fatalf("expected error with body, got %v", err)
	}
}

func TestElastic_BadJSON(t *testing.T) {
	e := fakeES(t, http.StatusOK, `{not json`, nil)
	if _, err := e.Search(context.Background(), NewQuery("x", ModeNormal, 0, 10)); err == nil {
		t.Fatal("expected decode error")
	}
}
