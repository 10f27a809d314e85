package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
)

const testDim = 4

func newTestClient(t *testing.T, handler http.Handler) (Index, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(logger.NewNop(), Config{
		URL:        srv.URL,
		Collection: "beatmap_embeddings",
		VectorDim:  testDim,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func writeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result": result,
		"status": "ok",
		"time":   0.001,
	})
}

func testVector() []float32 {
	return []float32{0.1, 0.2, 0.3, 0.4}
}

func TestSearchDecodesHits(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/beatmap_embeddings/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["limit"].(float64) != 7 {
			t.Errorf("limit: want=7 got=%v", body["limit"])
		}
		if _, hasFilter := body["filter"]; !hasFilter {
			t.Errorf("request missing translated filter")
		}
		writeResult(w, []map[string]any{
			{"id": 5001, "score": 0.93, "payload": map[string]any{"beatmapset_id": 101}},
			{"id": 5002, "score": 0.88, "payload": map[string]any{"beatmapset_id": 202}},
		})
	}))

	hits, err := c.Search(context.Background(), SearchRequest{
		Vector: testVector(),
		TopK:   7,
		Filter: map[string]any{"mode": "osu"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hit count: want=2 got=%d", len(hits))
	}
	if hits[0].ID != 5001 || hits[0].Score != 0.93 {
		t.Fatalf("first hit: got=%+v", hits[0])
	}
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))

	_, err := c.Search(context.Background(), SearchRequest{Vector: []float32{1, 2}})
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.Code != OperationErrorValidation {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestSearchBatchFansOutAllQueries(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/beatmap_embeddings/points/search/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Searches []map[string]any `json:"searches"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Searches) != 2 {
			t.Errorf("search count: want=2 got=%d", len(body.Searches))
		}
		writeResult(w, [][]map[string]any{
			{{"id": 1, "score": 0.5}},
			{{"id": 2, "score": 0.6}},
		})
	}))

	results, err := c.SearchBatch(context.Background(), []SearchRequest{
		{Vector: testVector(), TopK: 10},
		{Vector: testVector(), TopK: 10},
	})
	if err != nil {
		t.Fatalf("SearchBatch: %v", err)
	}
	if len(results) != 2 || results[0][0].ID != 1 || results[1][0].ID != 2 {
		t.Fatalf("batch results misaligned: %+v", results)
	}
}

func TestUpsertValidatesPoints(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))

	err := c.Upsert(context.Background(), []Point{{ID: 0, Vector: testVector()}})
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.Code != OperationErrorValidation {
		t.Fatalf("want validation error for non-positive id, got %v", err)
	}

	err = c.Upsert(context.Background(), []Point{{ID: 1, Vector: []float32{1}}})
	if !errors.As(err, &opErrTyped) || opErrTyped.Code != OperationErrorValidation {
		t.Fatalf("want validation error for dimension mismatch, got %v", err)
	}
}

func TestRetrieveReturnsVectors(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/beatmap_embeddings/points" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeResult(w, []map[string]any{
			{"id": 5001, "vector": []float64{0.1, 0.2, 0.3, 0.4}, "payload": map[string]any{"mode": "osu"}},
		})
	}))

	points, err := c.Retrieve(context.Background(), []int64{5001}, true)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(points) != 1 || points[0].ID != 5001 || len(points[0].Vector) != testDim {
		t.Fatalf("retrieved point: %+v", points)
	}
}

func TestServerErrorIsQueryFailedAndRetryable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))

	_, err := c.Search(context.Background(), SearchRequest{Vector: testVector(), TopK: 5})
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		t.Fatalf("want OperationError, got %v", err)
	}
	if opErrTyped.Code != OperationErrorQueryFailed {
		t.Fatalf("error code: want=%s got=%s", OperationErrorQueryFailed, opErrTyped.Code)
	}
	if !opErrTyped.IsRetryable() {
		t.Fatalf("5xx query failure must be retryable")
	}
}

func TestClientErrorIsNotRetryable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := c.Search(context.Background(), SearchRequest{Vector: testVector(), TopK: 5})
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		t.Fatalf("want OperationError, got %v", err)
	}
	if opErrTyped.IsRetryable() {
		t.Fatalf("4xx query failure must not be retryable")
	}
}

func TestEnsureCollectionCreatesOn404(t *testing.T) {
	var createdCollection, createdIndex bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/beatmap_embeddings":
			http.Error(w, "not found", http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/beatmap_embeddings":
			createdCollection = true
			writeResult(w, true)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/beatmap_embeddings/index":
			createdIndex = true
			writeResult(w, map[string]any{"status": "acknowledged"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	if err := c.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if !createdCollection || !createdIndex {
		t.Fatalf("create calls: collection=%v index=%v", createdCollection, createdIndex)
	}
}

func TestEnsureCollectionRejectsDimensionMismatch(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 8, "distance": "Cosine"},
				},
			},
		})
	}))

	err := c.EnsureCollection(context.Background())
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.Code != OperationErrorValidation {
		t.Fatalf("want validation error on size mismatch, got %v", err)
	}
}
