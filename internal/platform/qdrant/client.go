package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/ctxutil"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// Point is one stored embedding keyed by its beatmap id.
type Point struct {
	ID      int64
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is one nearest-neighbour hit.
type ScoredPoint struct {
	ID      int64
	Score   float64
	Payload map[string]any
}

// SearchRequest is a single top-K query against the collection.
type SearchRequest struct {
	Vector []float32
	TopK   int
	Filter map[string]any
}

// Index is the vector-index capability consumed by ingestion and retrieval.
type Index interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Retrieve(ctx context.Context, ids []int64, withVectors bool) ([]Point, error)
	Search(ctx context.Context, req SearchRequest) ([]ScoredPoint, error)
	SearchBatch(ctx context.Context, reqs []SearchRequest) ([][]ScoredPoint, error)
}

type client struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      int64           `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  json.RawMessage `json:"vector"`
}

type retrieveResultItem struct {
	ID      int64          `json:"id"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"vector"`
}

func NewClient(log *logger.Logger, cfg Config) (Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	c := &client{
		log:     log.With("service", "QdrantIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	log.Info(
		"qdrant index client ready",
		"url", c.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return c, nil
}

// EnsureCollection creates the collection and its beatmapset_id payload
// index when they do not exist yet. Safe to call on every startup.
func (c *client) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := c.doJSON(ctx, op, http.MethodGet, c.collectionPath(""), nil, &info)
	if err == nil {
		size := info.Config.Params.Vectors.Size
		if size != 0 && size != c.cfg.VectorDim {
			return &OperationError{
				Code:      OperationErrorValidation,
				Operation: op,
				Message: fmt.Sprintf(
					"collection %q vector size mismatch: expected=%d actual=%d",
					c.cfg.Collection,
					c.cfg.VectorDim,
					size,
				),
			}
		}
		return nil
	}

	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.StatusCode != http.StatusNotFound {
		return err
	}

	create := map[string]any{
		"vectors": map[string]any{
			"size":     c.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	if err := c.doJSON(ctx, op, http.MethodPut, c.collectionPath(""), create, nil); err != nil {
		return err
	}

	// Filterable payload index used by the per-group exclusion predicate.
	index := map[string]any{
		"field_name":   "beatmapset_id",
		"field_schema": "integer",
	}
	if err := c.doJSON(ctx, op, http.MethodPut, c.collectionPath("/index?wait=true"), index, nil); err != nil {
		return err
	}

	c.log.Info("qdrant collection created", "collection", c.cfg.Collection, "vector_dim", c.cfg.VectorDim)
	return nil
}

func (c *client) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if p.ID <= 0 {
			return opErr(op, OperationErrorValidation, "point id must be positive", nil)
		}
		if len(p.Vector) != c.cfg.VectorDim {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf("point %d dimension mismatch: expected=%d got=%d", p.ID, c.cfg.VectorDim, len(p.Vector)),
				nil,
			)
		}
		body = append(body, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}

	req := map[string]any{"points": body}
	return c.doJSON(ctx, op, http.MethodPut, c.collectionPath("/points?wait=true"), req, nil)
}

func (c *client) Retrieve(ctx context.Context, ids []int64, withVectors bool) ([]Point, error) {
	const op = "retrieve"
	if len(ids) == 0 {
		return nil, nil
	}

	req := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  withVectors,
	}
	var raw []retrieveResultItem
	if err := c.doJSON(ctx, op, http.MethodPost, c.collectionPath("/points"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]Point, 0, len(raw))
	for _, item := range raw {
		out = append(out, Point{
			ID:      item.ID,
			Vector:  item.Vector,
			Payload: item.Payload,
		})
	}
	return out, nil
}

func (c *client) Search(ctx context.Context, req SearchRequest) ([]ScoredPoint, error) {
	const op = "search"
	body, err := c.searchBody(op, req)
	if err != nil {
		return nil, err
	}

	var raw []searchResultItem
	if err := c.doJSON(ctx, op, http.MethodPost, c.collectionPath("/points/search"), body, &raw); err != nil {
		return nil, err
	}
	return toScoredPoints(raw), nil
}

func (c *client) SearchBatch(ctx context.Context, reqs []SearchRequest) ([][]ScoredPoint, error) {
	const op = "search_batch"
	if len(reqs) == 0 {
		return nil, nil
	}

	searches := make([]map[string]any, 0, len(reqs))
	for _, req := range reqs {
		body, err := c.searchBody(op, req)
		if err != nil {
			return nil, err
		}
		searches = append(searches, body)
	}

	var raw [][]searchResultItem
	payload := map[string]any{"searches": searches}
	if err := c.doJSON(ctx, op, http.MethodPost, c.collectionPath("/points/search/batch"), payload, &raw); err != nil {
		return nil, err
	}

	out := make([][]ScoredPoint, 0, len(raw))
	for _, items := range raw {
		out = append(out, toScoredPoints(items))
	}
	return out, nil
}

func (c *client) searchBody(op string, req SearchRequest) (map[string]any, error) {
	if len(req.Vector) != c.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", c.cfg.VectorDim, len(req.Vector)),
			nil,
		)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	body := map[string]any{
		"vector":       req.Vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(req.Filter) > 0 {
		translated, err := translateFilterMap(req.Filter)
		if err != nil {
			var opErrTyped *OperationError
			if errors.As(err, &opErrTyped) && opErrTyped.Code == OperationErrorUnsupportedFilter {
				c.log.Warn("qdrant query filter unsupported", "error", err)
			}
			return nil, err
		}
		body["filter"] = translated.asMap()
	}
	return body, nil
}

func toScoredPoints(items []searchResultItem) []ScoredPoint {
	out := make([]ScoredPoint, 0, len(items))
	for _, item := range items {
		out = append(out, ScoredPoint{
			ID:      item.ID,
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return out
}

func (c *client) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Ensure(ctx), method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(env.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (c *client) collectionPath(suffix string) string {
	path := "/collections/" + c.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
