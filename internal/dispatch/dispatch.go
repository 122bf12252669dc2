// Package dispatch executes parsed instructions against the video store,
// the decomposition engine and the script generator.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/reelkit/internal/command"
	"github.com/kalambet/reelkit/internal/resolver"
	"github.com/kalambet/reelkit/internal/script"
	"github.com/kalambet/reelkit/internal/storage"
	"github.com/kalambet/reelkit/internal/store"
	"github.com/kalambet/reelkit/internal/video"
)

// ArtifactDirName is the directory under the data dir that holds generated
// scripts.
const ArtifactDirName = "generated_scripts"

// Store is the read side of the video store.
type Store interface {
	LoadQueue() (*video.Queue, error)
	LoadAll() ([]video.Decomposition, error)
}

// Decomposer analyses one video and persists the result.
type Decomposer interface {
	Decompose(ctx context.Context, e video.Entry) (video.Decomposition, error)
}

// ScriptWriter produces a script for either generation mode.
type ScriptWriter interface {
	Generate(ctx context.Context, r script.Request) (string, error)
}

// Ledger records runs and generated scripts.
type Ledger interface {
	SaveRun(r storage.Run, items []storage.RunItem) error
	SaveScript(sc storage.Script) error
}

// URLResolver resolves a share URL for one-off analysis.
type URLResolver interface {
	Resolve(ctx context.Context, shareURL string) (resolver.Resolution, error)
}

// Deps wires a Dispatcher. Ledger and Resolver are optional.
type Deps struct {
	Store       Store
	Engine      Decomposer
	Scripts     ScriptWriter
	Ledger      Ledger
	Resolver    URLResolver
	Product     script.Product
	ArtifactDir string
}

// Dispatcher routes operations to their collaborators.
type Dispatcher struct {
	store       Store
	engine      Decomposer
	scripts     ScriptWriter
	ledger      Ledger
	resolver    URLResolver
	product     script.Product
	artifactDir string
	now         func() time.Time
}

// New creates a Dispatcher.
func New(d Deps) *Dispatcher {
	return &Dispatcher{
		store:       d.Store,
		engine:      d.Engine,
		scripts:     d.Scripts,
		ledger:      d.Ledger,
		resolver:    d.Resolver,
		product:     d.Product,
		artifactDir: d.ArtifactDir,
		now:         time.Now,
	}
}

// WithProduct returns a copy of d that promotes p in generated scripts.
func (d *Dispatcher) WithProduct(p script.Product) *Dispatcher {
	cp := *d
	cp.product = p
	return &cp
}

// Product returns the product promoted by generated scripts.
func (d *Dispatcher) Product() script.Product {
	return d.product
}

// Item is the outcome of one queue index in a decompose run.
type Item struct {
	Index         int                  `json:"index"`
	VideoID       string               `json:"video_id,omitempty"`
	Decomposition *video.Decomposition `json:"decomposition,omitempty"`
	Err           error                `json:"-"`
	Error         string               `json:"error,omitempty"`
}

// OK reports whether the item was decomposed. Error is checked too so that
// results decoded from JSON report failures.
func (it Item) OK() bool { return it.Err == nil && it.Error == "" }

// Result is the outcome of one operation. Decompose fills Items; Imitate
// fills Video and Decomposition; Imitate and Originate fill Script and
// ArtifactPath.
type Result struct {
	RunID         string               `json:"run_id"`
	Operation     string               `json:"operation"`
	Items         []Item               `json:"items,omitempty"`
	Video         *video.Entry         `json:"video,omitempty"`
	Decomposition *video.Decomposition `json:"decomposition,omitempty"`
	Topic         string               `json:"topic,omitempty"`
	Script        string               `json:"script,omitempty"`
	ArtifactPath  string               `json:"artifact_path,omitempty"`
}

// Succeeded returns the number of decomposed items.
func (r *Result) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of items that produced a diagnostic.
func (r *Result) Failed() int {
	return len(r.Items) - r.Succeeded()
}

// OK reports whether the result is usable: at least one decomposed item,
// or a generated script.
func (r *Result) OK() bool {
	if r == nil {
		return false
	}
	if r.Operation == command.Decompose.String() {
		return r.Succeeded() > 0
	}
	return true
}

// ParseAndExecute parses text and executes it against the current queue
// snapshot. A missing snapshot only matters for operations that read it.
func (d *Dispatcher) ParseAndExecute(ctx context.Context, text string) (*Result, error) {
	op, err := command.Parse(text)
	if err != nil {
		return nil, err
	}

	var q *video.Queue
	if op.Kind != command.Originate {
		q, err = d.store.LoadQueue()
		if err != nil && !errors.Is(err, store.ErrNoQueue) {
			return nil, fmt.Errorf("loading queue: %w", err)
		}
	}
	return d.run(ctx, op, q, text)
}

// Execute runs op against q. q may be nil for Originate.
func (d *Dispatcher) Execute(ctx context.Context, op command.Operation, q *video.Queue) (*Result, error) {
	return d.run(ctx, op, q, describe(op))
}

func (d *Dispatcher) run(ctx context.Context, op command.Operation, q *video.Queue, input string) (*Result, error) {
	started := d.now()
	res := &Result{RunID: uuid.NewString(), Operation: op.Kind.String()}

	var err error
	switch op.Kind {
	case command.Decompose:
		err = d.decompose(ctx, op.Indices, q, res)
	case command.Imitate:
		err = d.imitate(ctx, op.Index, q, res)
	case command.Originate:
		err = d.originate(ctx, op.Topic, res)
	default:
		err = fmt.Errorf("%w: unknown operation %d", command.ErrUnrecognized, op.Kind)
	}

	d.record(res, input, started, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Dispatcher) decompose(ctx context.Context, indices []int, q *video.Queue, res *Result) error {
	if q == nil {
		return fmt.Errorf("decompose: %w", store.ErrNoQueue)
	}

	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}

		it := Item{Index: idx}
		e, err := store.Resolve(q, idx)
		if err != nil {
			it.Err = err
		} else {
			it.VideoID = e.VideoID
			dec, derr := d.engine.Decompose(ctx, e)
			if derr != nil {
				it.Err = derr
			} else {
				it.Decomposition = &dec
			}
		}

		if it.Err != nil {
			it.Error = it.Err.Error()
			slog.Warn("decompose item failed", "index", idx, "video_id", it.VideoID, "error", it.Err)
		} else {
			slog.Info("decomposed video", "index", idx, "video_id", it.VideoID)
		}
		res.Items = append(res.Items, it)
	}
	return nil
}

func (d *Dispatcher) imitate(ctx context.Context, index int, q *video.Queue, res *Result) error {
	if q == nil {
		return fmt.Errorf("imitate: %w", store.ErrNoQueue)
	}
	e, err := store.Resolve(q, index)
	if err != nil {
		return fmt.Errorf("imitate: %w", err)
	}

	dec, err := d.engine.Decompose(ctx, e)
	if err != nil {
		return fmt.Errorf("imitate %s: %w", e.VideoID, err)
	}

	text, err := d.scripts.Generate(ctx, script.Request{
		Mode:          script.Imitate,
		Decomposition: dec,
		Product:       d.product,
	})
	if err != nil {
		return fmt.Errorf("imitate %s: %w", e.VideoID, err)
	}

	created := d.now()
	content := renderArtifact(provenance{
		title: "仿写脚本：" + firstNonEmpty(e.Title, e.VideoID),
		lines: [][2]string{
			{"参考视频", fmt.Sprintf("%s（%s）", firstNonEmpty(e.Title, "未命名"), e.VideoID)},
			{"原作者", firstNonEmpty(e.Author, "未知")},
			{"新产品", d.product.Name},
		},
		runID:   res.RunID,
		created: created,
	}, text)

	path, err := writeArtifact(d.artifactDir, ArtifactName("imitate", e.VideoID, created), content)
	if err != nil {
		return fmt.Errorf("imitate %s: %w", e.VideoID, err)
	}

	res.Video = &e
	res.Decomposition = &dec
	res.Script = text
	res.ArtifactPath = path
	d.recordScript(res, e.VideoID, "", created)
	return nil
}

func (d *Dispatcher) originate(ctx context.Context, topic string, res *Result) error {
	corpus, err := d.store.LoadAll()
	if err != nil {
		return fmt.Errorf("originate: loading decompositions: %w", err)
	}

	text, err := d.scripts.Generate(ctx, script.Request{
		Mode:     script.Originate,
		Topic:    topic,
		Patterns: corpus,
		Product:  d.product,
	})
	if err != nil {
		return fmt.Errorf("originate: %w", err)
	}

	created := d.now()
	content := renderArtifact(provenance{
		title: "原创脚本：" + topic,
		lines: [][2]string{
			{"主题", topic},
			{"参考样本", fmt.Sprintf("%d", min(len(corpus), script.DefaultSampleSize))},
			{"新产品", d.product.Name},
		},
		runID:   res.RunID,
		created: created,
	}, text)

	path, err := writeArtifact(d.artifactDir, ArtifactName("originate", topic, created), content)
	if err != nil {
		return fmt.Errorf("originate: %w", err)
	}

	res.Topic = topic
	res.Script = text
	res.ArtifactPath = path
	d.recordScript(res, "", topic, created)
	return nil
}

// AnalyzeURL decomposes a single share URL outside the queue. The video ID
// is derived from the URL so repeated analyses overwrite one record.
func (d *Dispatcher) AnalyzeURL(ctx context.Context, shareURL string) (*Result, error) {
	shareURL = strings.TrimSpace(shareURL)
	if shareURL == "" {
		return nil, errors.New("analyze: empty url")
	}
	if d.resolver == nil {
		return nil, errors.New("analyze: no resolver configured")
	}

	started := d.now()
	res := &Result{RunID: uuid.NewString(), Operation: "analyze"}

	err := func() error {
		r, err := d.resolver.Resolve(ctx, shareURL)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		e := video.Entry{
			VideoID:  URLVideoID(shareURL),
			Title:    r.Title,
			ShareURL: shareURL,
			MediaURL: r.DownloadURL,
		}
		dec, err := d.engine.Decompose(ctx, e)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", e.VideoID, err)
		}
		res.Video = &e
		res.Decomposition = &dec
		return nil
	}()

	d.record(res, shareURL, started, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// URLVideoID returns the stable video ID used for a share URL analysed
// outside the queue.
func URLVideoID(shareURL string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(shareURL))
	return "url-" + strings.ReplaceAll(id.String(), "-", "")[:16]
}

func (d *Dispatcher) record(res *Result, input string, started time.Time, runErr error) {
	if d.ledger == nil {
		return
	}

	run := storage.Run{
		ID:         res.RunID,
		Operation:  res.Operation,
		Input:      input,
		Status:     storage.StatusOK,
		StartedAt:  started,
		FinishedAt: d.now(),
	}
	switch {
	case runErr != nil:
		run.Status = storage.StatusFailed
		run.Error = runErr.Error()
	case res.Operation == command.Decompose.String() && res.Succeeded() == 0 && len(res.Items) > 0:
		run.Status = storage.StatusFailed
	case res.Failed() > 0:
		run.Status = storage.StatusPartial
	}

	items := make([]storage.RunItem, 0, len(res.Items))
	for _, it := range res.Items {
		ri := storage.RunItem{QueueIndex: it.Index, VideoID: it.VideoID, Status: storage.StatusOK}
		if it.Err != nil {
			ri.Status = storage.StatusFailed
			ri.Error = it.Error
		}
		items = append(items, ri)
	}

	if err := d.ledger.SaveRun(run, items); err != nil {
		slog.Warn("recording run failed", "run_id", run.ID, "error", err)
	}
}

func (d *Dispatcher) recordScript(res *Result, videoID, topic string, created time.Time) {
	if d.ledger == nil {
		return
	}
	// The run row is written after the operation returns; scripts reference
	// it by ID only.
	err := d.ledger.SaveScript(storage.Script{
		ID:            uuid.NewString(),
		RunID:         res.RunID,
		Operation:     res.Operation,
		SourceVideoID: videoID,
		Topic:         topic,
		Product:       d.product.Name,
		Path:          filepath.ToSlash(res.ArtifactPath),
		CreatedAt:     created,
	})
	if err != nil {
		slog.Warn("recording script failed", "run_id", res.RunID, "error", err)
	}
}

func describe(op command.Operation) string {
	switch op.Kind {
	case command.Decompose:
		parts := make([]string, len(op.Indices))
		for i, n := range op.Indices {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "decompose " + strings.Join(parts, ",")
	case command.Imitate:
		return fmt.Sprintf("imitate %d", op.Index)
	case command.Originate:
		return "originate " + op.Topic
	default:
		return op.Kind.String()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
