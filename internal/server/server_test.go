package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"menu-catalog-api/internal/generation"
	"menu-catalog-api/internal/service"
	"menu-catalog-api/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate(context.Context, string, generation.Params) (string, error) {
	return g.text, g.err
}

func (g *stubGenerator) Model() string { return "stub-model" }

func newTestServer(t *testing.T, gen *stubGenerator, production bool) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	svc := service.New(store, gen, service.Options{})
	return New(svc, Config{Production: production})
}

type response struct {
	Status     string          `json:"status"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	Details    []string        `json:"details"`
	Detail     string          `json:"detail"`
	Stack      string          `json:"stack"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PerPage    int   `json:"per_page"`
		TotalPages int   `json:"total_pages"`
	} `json:"pagination"`
}

func do(t *testing.T, s *Server, method, path string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if str, ok := body.(string); ok {
			buf.WriteString(str)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func menuBody(name, category string, calories int, price float64) map[string]any {
	return map[string]any{
		"name":        name,
		"category":    category,
		"calories":    calories,
		"price":       price,
		"ingredients": []string{"rice"},
	}
}

func TestMenuCRUDFlow(t *testing.T) {
	s := newTestServer(t, &stubGenerator{}, false)

	code, res := do(t, s, http.MethodPost, "/menu", menuBody("Nasi Goreng", "main-course", 650, 35000))
	if code != http.StatusCreated || res.Status != "success" {
		t.Fatalf("create: %d %+v", code, res)
	}
	var created struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	json.Unmarshal(res.Data, &created)
	if created.ID == 0 {
		t.Fatalf("missing id in %s", res.Data)
	}
	for _, b := range []map[string]any{menuBody("Es Teh", "drinks", 90, 5000), menuBody("Klepon", "snacks", 200, 10000)} {
		if code, _ := do(t, s, http.MethodPost, "/menu", b); code != http.StatusCreated {
			t.Fatalf("seed: %d", code)
		}
	}

	code, res = do(t, s, http.MethodGet, "/menu?sort=price:asc&per_page=2", nil)
	if code != http.StatusOK || res.Pagination == nil || res.Pagination.Total != 3 || res.Pagination.TotalPages != 2 {
		t.Fatalf("list: %d %+v", code, res.Pagination)
	}
	var items []struct{ Name string }
	json.Unmarshal(res.Data, &items)
	if len(items) != 2 || items[0].Name != "Es Teh" {
		t.Fatalf("unexpected page %+v", items)
	}

	code, res = do(t, s, http.MethodGet, "/menu/search?q=klep", nil)
	if code != http.StatusOK || res.Pagination.Total != 1 {
		t.Fatalf("search: %d %+v", code, res)
	}

	code, res = do(t, s, http.MethodGet, "/menu/group-by-category?mode=count", nil)
	var counts map[string]int
	json.Unmarshal(res.Data, &counts)
	if code != http.StatusOK || counts["drinks"] != 1 {
		t.Fatalf("group: %d %s", code, res.Data)
	}

	path := "/menu/" + jsonInt(created.ID)
	code, res = do(t, s, http.MethodPut, path, menuBody("Nasi Goreng Spesial", "main-course", 700, 40000))
	if code != http.StatusOK {
		t.Fatalf("update: %d %+v", code, res)
	}
	code, res = do(t, s, http.MethodGet, path, nil)
	if code != http.StatusOK || !strings.Contains(string(res.Data), "Spesial") {
		t.Fatalf("get: %d %s", code, res.Data)
	}

	if code, _ := do(t, s, http.MethodDelete, path, nil); code != http.StatusOK {
		t.Fatalf("first delete: %d", code)
	}
	code, res = do(t, s, http.MethodDelete, path, nil)
	if code != http.StatusNotFound || res.Error != "not_found" || res.Message != "Menu with id "+jsonInt(created.ID)+" not found" {
		t.Fatalf("second delete: %d %+v", code, res)
	}
}

func TestValidationErrorsListEveryField(t *testing.T) {
	s := newTestServer(t, &stubGenerator{}, false)

	code, res := do(t, s, http.MethodPost, "/menu", map[string]any{"name": "", "calories": -1, "price": 5})
	if code != http.StatusBadRequest || res.Error != "validation_error" {
		t.Fatalf("expected 400, got %d %+v", code, res)
	}
	joined := strings.Join(res.Details, "|")
	for _, want := range []string{"name", "category", "calories must be >= 0", "ingredients"} {
		if !strings.Contains(joined, want) {
			t.Errorf("details %v missing %q", res.Details, want)
		}
	}

	code, res = do(t, s, http.MethodPost, "/menu/calculate-calories", map[string]any{})
	if code != http.StatusBadRequest || len(res.Details) != 1 || res.Details[0] != "menu_items is required" {
		t.Fatalf("calorie binding: %d %+v", code, res)
	}

	code, res = do(t, s, http.MethodPost, "/menu/auto-generate", `{"prompt": `)
	if code != http.StatusBadRequest {
		t.Fatalf("malformed body: %d %+v", code, res)
	}

	code, res = do(t, s, http.MethodGet, "/menu?sort=password:asc", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("bad sort: %d %+v", code, res)
	}

	code, res = do(t, s, http.MethodGet, "/menu?max_cal=-1", nil)
	if code != http.StatusBadRequest || len(res.Details) != 1 || res.Details[0] != "max_cal must be >= 0" {
		t.Fatalf("bad max_cal: %d %+v", code, res)
	}

	code, res = do(t, s, http.MethodGet, "/menu/abc", nil)
	if code != http.StatusBadRequest || res.Details[0] != "id must be a positive integer" {
		t.Fatalf("bad id: %d %+v", code, res)
	}
}

const generated = "```json\n[" +
	`{"name":"Sate Ayam","category":"main-course","calories":450,"price":30000,"ingredients":["chicken"]},` +
	`{"name":"Broken","category":"main-course","calories":"lots","price":1,"ingredients":["x"]}` +
	"]\n```"

func TestAutoGenerateEndpoints(t *testing.T) {
	s := newTestServer(t, &stubGenerator{text: generated}, false)

	code, res := do(t, s, http.MethodPost, "/menu/auto-generate", map[string]any{"prompt": "satay", "count": 2})
	if code != http.StatusCreated {
		t.Fatalf("generate: %d %+v", code, res)
	}
	var result struct {
		GenerationID int64 `json:"generation_id"`
		CreatedCount int   `json:"created_count"`
		Skipped      []struct {
			Stage   string   `json:"stage"`
			Reasons []string `json:"reasons"`
		} `json:"skipped"`
	}
	json.Unmarshal(res.Data, &result)
	if result.CreatedCount != 1 || len(result.Skipped) != 1 || result.Skipped[0].Stage != "validation" {
		t.Fatalf("unexpected result %s", res.Data)
	}

	code, res = do(t, s, http.MethodGet, "/menu/auto-generate?q=sat", nil)
	if code != http.StatusOK || res.Pagination.Total != 1 {
		t.Fatalf("list: %d %+v", code, res)
	}
	code, res = do(t, s, http.MethodGet, "/menu/auto-generate/statistics", nil)
	if code != http.StatusOK || !strings.Contains(string(res.Data), `"total_generations":1`) {
		t.Fatalf("stats: %d %s", code, res.Data)
	}
	code, res = do(t, s, http.MethodGet, "/menu/auto-generate/recent?limit=5", nil)
	if code != http.StatusOK {
		t.Fatalf("recent: %d %+v", code, res)
	}

	path := "/menu/auto-generate/" + jsonInt(result.GenerationID)
	if code, _ := do(t, s, http.MethodGet, path, nil); code != http.StatusOK {
		t.Fatalf("get: %d", code)
	}
	do(t, s, http.MethodDelete, path, nil)
	code, res = do(t, s, http.MethodDelete, path, nil)
	if code != http.StatusNotFound || res.Message != "Generated menu with id "+jsonInt(result.GenerationID)+" not found" {
		t.Fatalf("second delete: %d %+v", code, res)
	}

	code, res = do(t, s, http.MethodGet, "/menu/auto-generate?start_date=03-01-2024", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("bad date: %d %+v", code, res)
	}
}

func TestUpstreamFailuresMapTo500(t *testing.T) {
	genErr := &generation.GenerationError{Op: "request", StatusCode: 503, Err: errors.New("secret upstream text")}

	dev := newTestServer(t, &stubGenerator{err: genErr}, false)
	code, res := do(t, dev, http.MethodPost, "/menu/auto-generate", map[string]any{"prompt": "x"})
	if code != http.StatusInternalServerError || res.Error != "generation_error" ||
		res.Message != "Failed to generate content from the language model" || !strings.Contains(res.Detail, "secret upstream text") {
		t.Fatalf("dev: %d %+v", code, res)
	}

	prod := newTestServer(t, &stubGenerator{err: genErr}, true)
	code, res = do(t, prod, http.MethodPost, "/menu/auto-generate", map[string]any{"prompt": "x"})
	if code != http.StatusInternalServerError || res.Detail != "" {
		t.Fatalf("prod: %d %+v", code, res)
	}

	junk := newTestServer(t, &stubGenerator{text: "I am unable to comply."}, true)
	code, res = do(t, junk, http.MethodPost, "/menu/auto-generate", map[string]any{"prompt": "x"})
	if code != http.StatusInternalServerError || res.Error != "extraction_error" || strings.Contains(res.Message, "unable") {
		t.Fatalf("extraction: %d %+v", code, res)
	}
}

func TestRecommendationAndCalories(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestServer(t, gen, false)

	code, res := do(t, s, http.MethodPost, "/menu/recommendations", "")
	if code != http.StatusNotFound || res.Message != "No menu items available for recommendation" {
		t.Fatalf("empty catalog: %d %+v", code, res)
	}

	_, res = do(t, s, http.MethodPost, "/menu", menuBody("Es Teh", "drinks", 90, 5000))
	var tea struct{ ID int64 }
	json.Unmarshal(res.Data, &tea)

	gen.text = `{"recommendations":{"beverage":{"id":` + jsonInt(tea.ID) + `,"reason":"Refreshing"}},"summary":"Just tea"}`
	code, res = do(t, s, http.MethodPost, "/menu/recommendations", map[string]any{"budget": 10000})
	if code != http.StatusOK || !strings.Contains(string(res.Data), `"total_price":5000`) {
		t.Fatalf("recommend: %d %s", code, res.Data)
	}

	gen.text = `{"total_calories":180,"nutritional_breakdown":{"sugar":"40g"},
		"menu_details":[{"name":"Es Teh","calories":90,"quantity":2,"subtotal_calories":180}],
		"exercise_recommendations":[{"name":"Walk","duration_minutes":30,"intensity":"Low","calories_burned_per_hour":300,"description":"Easy pace"}],
		"summary":"Sweet"}`
	code, res = do(t, s, http.MethodPost, "/menu/calculate-calories", map[string]any{
		"menu_items": []map[string]any{{"name": "Es Teh", "quantity": 2}},
	})
	if code != http.StatusCreated || !strings.Contains(string(res.Data), `"intensity":"low"`) {
		t.Fatalf("calculate: %d %s", code, res.Data)
	}

	code, res = do(t, s, http.MethodGet, "/menu/calculate-calories?min_calories=100&max_calories=200", nil)
	if code != http.StatusOK || res.Pagination.Total != 1 {
		t.Fatalf("list calculations: %d %+v", code, res)
	}
	code, res = do(t, s, http.MethodGet, "/menu/calculate-calories/statistics", nil)
	if code != http.StatusOK || !strings.Contains(string(res.Data), `"max_calories":180`) {
		t.Fatalf("calorie stats: %d %s", code, res.Data)
	}

	code, res = do(t, s, http.MethodPost, "/menu/calculate-calories", map[string]any{
		"menu_items": []map[string]any{{"id": 999}},
	})
	if code != http.StatusNotFound {
		t.Fatalf("unknown item: %d %+v", code, res)
	}
}

func TestMCPToolCall(t *testing.T) {
	s := newTestServer(t, &stubGenerator{}, false)
	do(t, s, http.MethodPost, "/menu", menuBody("Klepon", "snacks", 200, 10000))

	rec := httptest.NewRecorder()
	body := `{"name":"list_menu","arguments":{"q":"klepon"}}`
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("mcp: %d %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil || len(result.Content) != 1 {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	if result.Content[0].Type != "text" || !strings.Contains(result.Content[0].Text, "Klepon") {
		t.Fatalf("unexpected content %+v", result.Content)
	}

	code, res := do(t, s, http.MethodPost, "/mcp", map[string]any{"name": "drop_tables"})
	if code != http.StatusNotFound || res.Message != "Unknown tool: drop_tables" {
		t.Fatalf("unknown tool: %d %+v", code, res)
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t, &stubGenerator{}, true)
	s.router.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("panic: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_") {
		t.Fatalf("missing request id header")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/menu", nil)
	req.Header.Set("X-Request-ID", "req_fixed")
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" || rec.Header().Get("X-Request-ID") != "req_fixed" {
		t.Fatalf("preflight: %d %v", rec.Code, rec.Header())
	}

	code, res := do(t, s, http.MethodGet, "/health", nil)
	if code != http.StatusOK || !strings.Contains(string(res.Data), "stub-model") {
		t.Fatalf("health: %d %+v", code, res)
	}
}

func jsonInt(i int64) string {
	b, _ := json.Marshal(i)
	return string(b)
}
