package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/reelkit/internal/dispatch"
	"github.com/kalambet/reelkit/internal/script"
	"github.com/kalambet/reelkit/internal/storage"
	"github.com/kalambet/reelkit/internal/store"
	"github.com/kalambet/reelkit/internal/video"
)

const maxCommandBodySize = 64 << 10 // 64KB

// VideoStore is the read side of the flat-file video store.
type VideoStore interface {
	LoadQueue() (*video.Queue, error)
	Load(videoID string) (video.Decomposition, error)
	LoadAll() ([]video.Decomposition, error)
}

// RunLedger lists recorded runs and scripts.
type RunLedger interface {
	RecentRuns(limit int) ([]storage.Run, error)
	GetRun(id string) (storage.Run, []storage.RunItem, error)
	RecentScripts(videoID string, limit int) ([]storage.Script, error)
}

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	Text    string `json:"text"`
	Product string `json:"product,omitempty"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

type AppDeps struct {
	Dispatcher *dispatch.Dispatcher
	Store      VideoStore
	Ledger     RunLedger // optional; run and script listings return 404 without it
	Catalog    *script.Catalog
	Token      string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/commands", handleCommand(deps))
		r.Post("/analyze", handleAnalyze(deps))
		r.Get("/queue", handleQueue(deps))
		r.Get("/decompositions", handleListDecompositions(deps))
		r.Get("/decompositions/{id}", handleGetDecomposition(deps))
		r.Get("/runs", handleListRuns(deps))
		r.Get("/runs/{id}", handleGetRun(deps))
		r.Get("/scripts", handleListScripts(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleCommand(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxCommandBodySize)
		defer r.Body.Close()

		var req CommandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		d := deps.Dispatcher
		if req.Product != "" {
			if deps.Catalog == nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "no product catalog configured")
				return
			}
			p, err := deps.Catalog.Lookup(req.Product)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			d = d.WithProduct(p)
		}

		res, err := d.ParseAndExecute(r.Context(), req.Text)
		if err != nil {
			dispatchError(w, err)
			return
		}

		status := http.StatusOK
		if !res.OK() {
			// Every decompose item failed; the body still carries the diagnostics.
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, res)
	}
}

func handleAnalyze(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxCommandBodySize)
		defer r.Body.Close()

		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		res, err := deps.Dispatcher.AnalyzeURL(r.Context(), req.URL)
		if err != nil {
			dispatchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// queueItem is a queue entry as served by GET /queue, with its 1-based
// index and engagement index.
type queueItem struct {
	Index int `json:"index"`
	video.Entry
	EngagementK float64 `json:"engagement_k"`
}

func handleQueue(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := deps.Store.LoadQueue()
		if err != nil {
			dispatchError(w, err)
			return
		}

		items := make([]queueItem, len(q.Videos))
		for i, e := range q.Videos {
			items[i] = queueItem{Index: i + 1, Entry: e, EngagementK: e.Index()}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"date":      q.Date,
			"timestamp": q.Timestamp,
			"status":    q.Status,
			"videos":    items,
		})
	}
}

func handleListDecompositions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Store.LoadAll()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list decompositions: %v", err)
			return
		}
		if all == nil {
			all = []video.Decomposition{}
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func handleGetDecomposition(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Store.Load(chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "decomposition not found")
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleListRuns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Ledger == nil {
			httpError(w, http.StatusNotFound, "not_found", "run history is not enabled")
			return
		}
		runs, err := deps.Ledger.RecentRuns(parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}
		if runs == nil {
			runs = []storage.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Ledger == nil {
			httpError(w, http.StatusNotFound, "not_found", "run history is not enabled")
			return
		}
		run, items, err := deps.Ledger.GetRun(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get run: %v", err)
			return
		}
		if items == nil {
			items = []storage.RunItem{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "items": items})
	}
}

func handleListScripts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Ledger == nil {
			httpError(w, http.StatusNotFound, "not_found", "run history is not enabled")
			return
		}
		scripts, err := deps.Ledger.RecentScripts(r.URL.Query().Get("video_id"), parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list scripts: %v", err)
			return
		}
		if scripts == nil {
			scripts = []storage.Script{}
		}
		writeJSON(w, http.StatusOK, scripts)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
