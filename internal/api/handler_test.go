package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/reelkit/internal/dispatch"
	"github.com/kalambet/reelkit/internal/llm"
	"github.com/kalambet/reelkit/internal/script"
	"github.com/kalambet/reelkit/internal/storage"
	"github.com/kalambet/reelkit/internal/store"
	"github.com/kalambet/reelkit/internal/video"
)

const testToken = "test-token-12345"

type stubEngine struct {
	store *store.Store
	err   error
}

func (s *stubEngine) Decompose(ctx context.Context, e video.Entry) (video.Decomposition, error) {
	if s.err != nil {
		return video.Decomposition{}, s.err
	}
	d := video.Decomposition{VideoID: e.VideoID, Video: e, CoreTheme: "效率", OneLineSummary: "摘要-" + e.VideoID}
	return d, s.store.Save(d)
}

type stubWriter struct {
	got []script.Request
}

func (s *stubWriter) Generate(ctx context.Context, r script.Request) (string, error) {
	s.got = append(s.got, r)
	return "脚本：" + r.Product.Name, nil
}

type fixture struct {
	store   *store.Store
	ledger  *storage.Store
	engine  *stubEngine
	writer  *stubWriter
	d       *dispatch.Dispatcher
	catalog *script.Catalog
}

func newFixture(t *testing.T, videos ...video.Entry) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if len(videos) > 0 {
		if err := s.SaveQueue(&video.Queue{Date: "2025-03-01", Videos: videos}); err != nil {
			t.Fatalf("SaveQueue: %v", err)
		}
	}
	ledger, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	catalog, err := script.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	catalog.Products = append(catalog.Products, script.Product{Name: "NoteFlow"})

	f := &fixture{
		store:   s,
		ledger:  ledger,
		engine:  &stubEngine{store: s},
		writer:  &stubWriter{},
		catalog: catalog,
	}
	f.d = dispatch.New(dispatch.Deps{
		Store:       s,
		Engine:      f.engine,
		Scripts:     f.writer,
		Ledger:      ledger,
		Product:     script.DefaultProduct(),
		ArtifactDir: filepath.Join(dir, dispatch.ArtifactDirName),
	})
	return f
}

func (f *fixture) handler() http.Handler {
	return NewAppHandler(AppDeps{
		Dispatcher: f.d,
		Store:      f.store,
		Ledger:     f.ledger,
		Catalog:    f.catalog,
		Token:      testToken,
	})
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func sampleVideos() []video.Entry {
	return []video.Entry{
		{VideoID: "v1", Title: "三个习惯", Author: "效率研究所", Engagement: video.Engagement{Likes: 12000, Comments: 300, Shares: 700}},
		{VideoID: "v2", Title: "早起的秘密", Author: "晨型人"},
	}
}

func TestHealth_NoAuth(t *testing.T) {
	h := newFixture(t).handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	h := newFixture(t).handler()
	for _, tok := range []string{"", "wrong"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, "/queue", "", tok))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", tok, rr.Code)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"exact", "s3cret", "Bearer s3cret", http.StatusNoContent},
		{"lowercase scheme", "s3cret", "bearer s3cret", http.StatusNoContent},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"no scheme", "s3cret", "s3cret", http.StatusUnauthorized},
		{"empty configured token", "", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rr := httptest.NewRecorder()
			BearerAuth(tt.token)(ok).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestCommand_Decompose(t *testing.T) {
	f := newFixture(t, sampleVideos()...)
	h := f.handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/commands", `{"text":"拆解 1、2、5"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	var res dispatch.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Operation != "decompose" || len(res.Items) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if res.Items[2].Error == "" || res.Items[0].Error != "" {
		t.Errorf("items = %+v", res.Items)
	}

	// The run is visible through the history endpoints.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/runs/"+res.RunID, "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /runs/{id} status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var got struct {
		Run   storage.Run       `json:"run"`
		Items []storage.RunItem `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Run.Status != storage.StatusPartial || len(got.Items) != 3 {
		t.Errorf("run = %+v, items = %d", got.Run, len(got.Items))
	}
}

func TestCommand_AllItemsFailed(t *testing.T) {
	f := newFixture(t, sampleVideos()...)
	f.engine.err = &llm.CompletionError{StatusCode: 500}

	rr := httptest.NewRecorder()
	f.handler().ServeHTTP(rr, authReq(http.MethodPost, "/commands", `{"text":"decompose 1"}`, testToken))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body = %s", rr.Code, rr.Body.String())
	}
}

func TestCommand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		queue  bool
		status int
		typ    string
	}{
		{"bad json", `{`, true, http.StatusBadRequest, "invalid_request_error"},
		{"empty text", `{"text":"  "}`, true, http.StatusBadRequest, "invalid_request_error"},
		{"unrecognized", `{"text":"hello"}`, true, http.StatusBadRequest, "parse_error"},
		{"index out of range", `{"text":"仿写 9"}`, true, http.StatusNotFound, "not_found"},
		{"no queue", `{"text":"imitate 1"}`, false, http.StatusNotFound, "not_found"},
		{"unknown product", `{"text":"原创 猫","product":"Nope"}`, true, http.StatusBadRequest, "invalid_request_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f *fixture
			if tt.queue {
				f = newFixture(t, sampleVideos()...)
			} else {
				f = newFixture(t)
			}
			rr := httptest.NewRecorder()
			f.handler().ServeHTTP(rr, authReq(http.MethodPost, "/commands", tt.body, testToken))
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, tt.status, rr.Body.String())
			}
			var body struct {
				Error struct {
					Type string `json:"type"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Type != tt.typ {
				t.Errorf("error type = %q, want %q", body.Error.Type, tt.typ)
			}
		})
	}
}

func TestCommand_ProductOverride(t *testing.T) {
	f := newFixture(t, sampleVideos()...)

	rr := httptest.NewRecorder()
	f.handler().ServeHTTP(rr, authReq(http.MethodPost, "/commands", `{"text":"原创 早起","product":"noteflow"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if len(f.writer.got) != 1 || f.writer.got[0].Product.Name != "NoteFlow" {
		t.Errorf("writer requests = %+v", f.writer.got)
	}

	// The override does not leak into later requests.
	rr = httptest.NewRecorder()
	f.handler().ServeHTTP(rr, authReq(http.MethodPost, "/commands", `{"text":"原创 早起"}`, testToken))
	if f.writer.got[1].Product.Name != "AwriteAi" {
		t.Errorf("second request product = %q", f.writer.got[1].Product.Name)
	}
}

func TestQueue(t *testing.T) {
	f := newFixture(t, sampleVideos()...)

	rr := httptest.NewRecorder()
	f.handler().ServeHTTP(rr, authReq(http.MethodGet, "/queue", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Date   string `json:"date"`
		Videos []struct {
			Index       int     `json:"index"`
			VideoID     string  `json:"aweme_id"`
			EngagementK float64 `json:"engagement_k"`
		} `json:"videos"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Date != "2025-03-01" || len(body.Videos) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if body.Videos[0].Index != 1 || body.Videos[0].VideoID != "v1" || body.Videos[0].EngagementK != 13 {
		t.Errorf("first video = %+v", body.Videos[0])
	}
}

func TestDecompositions(t *testing.T) {
	f := newFixture(t)
	if err := f.store.Save(video.Decomposition{VideoID: "v9", CoreTheme: "主题"}); err != nil {
		t.Fatal(err)
	}
	h := f.handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/decompositions", "", testToken))
	var all []video.Decomposition
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].VideoID != "v9" {
		t.Errorf("decompositions = %+v", all)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/decompositions/v9", "", testToken))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "主题") {
		t.Errorf("GET v9: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/decompositions/missing", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET missing: status = %d, want 404", rr.Code)
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	h := newFixture(t).handler()
	for _, path := range []string{"/decompositions", "/runs", "/scripts"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, path, "", testToken))
		if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
			t.Errorf("GET %s = %s, want []", path, got)
		}
	}
}

func TestScriptsListing(t *testing.T) {
	f := newFixture(t, sampleVideos()...)
	h := f.handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/commands", `{"text":"仿写 2"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/scripts?video_id=v2", "", testToken))
	var scripts []storage.Script
	if err := json.Unmarshal(rr.Body.Bytes(), &scripts); err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 || scripts[0].SourceVideoID != "v2" || scripts[0].Product != "AwriteAi" {
		t.Errorf("scripts = %+v", scripts)
	}
}
