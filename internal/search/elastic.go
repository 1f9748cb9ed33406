package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
)

// Elastic queries an Elasticsearch index whose documents carry title, slug,
// parsed_content and completed fields, with _id set to the document id.
type Elastic struct {
	Client *elasticsearch.Client
	Index  string
}

// NewElastic connects to the given node URLs.
func NewElastic(urls []string, index string) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: urls})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Elastic{Client: es, Index: index}, nil
}

// Body renders q as an Elasticsearch request body: a bool query whose
// should clauses are a phrase multi_match and a fuzzy multi_match, filtered
// to completed documents.
func Body(q Query) map[string]any {
	fields := func(fws []FieldWeight) []string {
		out := make([]string, 0, len(fws))
		for _, f := range fws {
			out = append(out, f.String())
		}
		return out
	}
	should := []any{}
	if len(q.PhraseFields) > 0 {
		should = append(should, map[string]any{
			"multi_match": map[string]any{
				"query":  q.Text,
				"fields": fields(q.PhraseFields),
				"type":   "phrase",
				"boost":  q.PhraseBoost,
			},
		})
	}
	fuzzy := map[string]any{
		"query":     q.Text,
		"fields":    fields(q.Fields),
		"fuzziness": q.Fuzziness,
		"boost":     1,
	}
	if q.PrefixLength > 0 {
		fuzzy["prefix_length"] = q.PrefixLength
	}
	if q.MaxExpansions > 0 {
		fuzzy["max_expansions"] = q.MaxExpansions
	}
	should = append(should, map[string]any{"multi_match": fuzzy})

	boolQ := map[string]any{
		"should":               should,
		"minimum_should_match": 1,
	}
	if q.OnlyCompleted {
		boolQ["filter"] = []any{map[string]any{"term": map[string]any{"completed": true}}}
	}
	return map[string]any{
		"from":    q.From,
		"size":    q.Size,
		"_source": false,
		"query":   map[string]any{"bool": boolQ},
	}
}

type esResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes q and returns the total hit count and the page of ids.
func (e *Elastic) Search(ctx context.Context, q Query) (Result, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(Body(q)); err != nil {
		return Result{}, err
	}
	s := e.Client.Search
	res, err := s(
		s.WithContext(ctx),
		s.WithIndex(e.Index),
		s.WithBody(&buf),
		s.WithTrackTotalHits(true),
	)
	if err != nil {
		return Result{}, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Result{}, fmt.Errorf("elasticsearch search: %s: %s", res.Status(), strings.TrimSpace(string(msg)))
	}

	var body esResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("elasticsearch decode: %w", err)
	}
	out := Result{Total: body.Hits.Total.Value, IDs: make([]string, 0, len(body.Hits.Hits))}
	for _, h := range body.Hits.Hits {
		out.IDs = append(out.IDs, h.ID)
	}
	return out, nil
}
