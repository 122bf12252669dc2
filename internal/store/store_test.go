package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kalambet/reelkit/internal/video"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func sampleDecomposition(id string) video.Decomposition {
	return video.Decomposition{
		VideoID: id,
		Video: video.Entry{
			VideoID:    id,
			Title:      "三个习惯让你效率翻倍",
			Author:     "效率研究所",
			ShareURL:   "https://v.douyin.com/abc/",
			Engagement: video.Engagement{Likes: 120000, Comments: 3400, Shares: 8800, Collects: 15000},
		},
		CoreTheme:        "时间管理",
		OneLineSummary:   "用三个小习惯解决拖延",
		ViralReasons:     []string{"痛点精准", "节奏紧凑"},
		TitlePatterns:    []string{"数字+利益点"},
		WritingStyleTags: []string{"口语化", "干货"},
		TrafficHooks:     []string{"反常识开头"},
		GoldenQuotes:     []string{"自律不是忍，是设计"},
		OpeningTechnique: video.OpeningTechnique{Timing: "0-3秒", Technique: "提问", Script: "你是不是每天都很忙？"},
		StructureTimeline: []video.StructureStage{
			{TimeRange: "0-3秒", Stage: "钩子", Emotion: "好奇"},
			{TimeRange: "3-40秒", Stage: "方法", Emotion: "认同"},
		},
		CoreViewpoints: []string{"环境比意志力重要"},
		TargetAudience: video.TargetAudience{PrimaryGroup: "职场新人", SubGroups: []string{"学生"}, PainPoint: "拖延"},
		Raw:            "1. 核心主题：时间管理",
		CreatedAt:      time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestLoadQueueMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadQueue(); !errors.Is(err, ErrNoQueue) {
		t.Fatalf("LoadQueue error = %v, want ErrNoQueue", err)
	}
}

func TestLoadQueueEmptyIsNotMissing(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveQueue(&video.Queue{Date: "2025-03-01"}); err != nil {
		t.Fatalf("SaveQueue: %v", err)
	}
	q, err := s.LoadQueue()
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestWatchQueue(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *video.Queue, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.WatchQueue(ctx, func(q *video.Queue) { got <- q })
	}()

	// The watcher registers asynchronously, so keep rewriting until it reports.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for seen := false; !seen; {
		select {
		case q := <-got:
			if q.Date != "2025-03-02" {
				t.Errorf("Date = %q, want 2025-03-02", q.Date)
			}
			seen = true
		case <-tick.C:
			if err := s.SaveQueue(&video.Queue{Date: "2025-03-02", Videos: []video.Entry{{VideoID: "v1"}}}); err != nil {
				t.Fatalf("SaveQueue: %v", err)
			}
		case <-deadline:
			t.Fatal("no snapshot reported within 5s")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WatchQueue returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WatchQueue did not return after cancel")
	}
}

// TestLoadQueueCollectorFormat reads a snapshot in the layout the collection
// job writes, with engagement counters at the top level of each video.
func TestLoadQueueCollectorFormat(t *testing.T) {
	s := openTestStore(t)
	raw := `{
  "date": "2025-03-01",
  "timestamp": "2025-03-01T09:00:00+08:00",
  "status": "pending_selection",
  "videos": [
    {"aweme_id": "7340000000000000001", "title": "t1", "author": "a1", "likes": 100, "comments": 20, "shares": 5, "collects": 7, "share_url": "https://v.douyin.com/1/", "duration": 61000},
    {"aweme_id": "7340000000000000002", "title": "t2", "author": "a2", "likes": 50}
  ]
}`
	if err := os.WriteFile(s.QueuePath(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	q, err := s.LoadQueue()
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	v := q.Videos[0]
	if v.VideoID != "7340000000000000001" {
		t.Errorf("VideoID = %q", v.VideoID)
	}
	if v.Likes != 100 || v.Comments != 20 || v.Shares != 5 || v.Collects != 7 {
		t.Errorf("Engagement = %+v", v.Engagement)
	}
	if v.Duration != 61000 {
		t.Errorf("Duration = %d, want 61000", v.Duration)
	}
	if q.Status != "pending_selection" {
		t.Errorf("Status = %q", q.Status)
	}
}

func TestResolve(t *testing.T) {
	q := &video.Queue{Videos: []video.Entry{{VideoID: "a"}, {VideoID: "b"}, {VideoID: "c"}}}

	for i, want := range []string{"a", "b", "c"} {
		got, err := Resolve(q, i+1)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", i+1, err)
		}
		if got.VideoID != want {
			t.Errorf("Resolve(%d) = %q, want %q", i+1, got.VideoID, want)
		}
	}

	for _, idx := range []int{0, -1, 4, 100} {
		if _, err := Resolve(q, idx); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%d) error = %v, want ErrNotFound", idx, err)
		}
	}

	if _, err := Resolve(nil, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(nil, 1) error = %v, want ErrNotFound", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	want := sampleDecomposition("7340000000000000001")

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(want.VideoID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)
	d := sampleDecomposition("42")
	if err := s.Save(d); err != nil {
		t.Fatalf("Save: %v", err)
	}
	d.CoreTheme = "第二版"
	if err := s.Save(d); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("42")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CoreTheme != "第二版" {
		t.Errorf("CoreTheme = %q, want %q", got.CoreTheme, "第二版")
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestLoadLegacyRecord(t *testing.T) {
	s := openTestStore(t)
	legacy := `{
  "video_id": "7300000000000000009",
  "video_info": {"aweme_id": "7300000000000000009", "title": "旧记录", "likes": 5000},
  "analysis": {
    "raw": "1. 核心主题：存钱
2. 一句话总结：每月存一半",
    "1_核心主题": "存钱",
    "2_一句话总结": "每月存一半",
    "3_爆款理由": ["真实", "可复制"],
    "8_开头手法": {"时间": "0-3秒", "技巧": "晒账单", "口播": "我存下了十万"},
    "9_结构脉络": [{"时间段": "0-3秒", "阶段": "钩子", "情绪": "震惊"}],
    "11_目标受众": {"主要人群": "月光族", "细分": ["学生"], "痛点": "存不下钱"}
  },
  "created_at": "2025-02-01T10:00:00.000Z"
}`
	path := filepath.Join(s.videosDir, "7300000000000000009"+analysisSuffix)
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := s.Load("7300000000000000009")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.CoreTheme != "存钱" || d.OneLineSummary != "每月存一半" || !strings.HasPrefix(d.Raw, "1. 核心主题") {
		t.Errorf("scalar fields = %q / %q / %q", d.CoreTheme, d.OneLineSummary, d.Raw)
	}
	if !reflect.DeepEqual(d.ViralReasons, []string{"真实", "可复制"}) {
		t.Errorf("ViralReasons = %q", d.ViralReasons)
	}
	if d.OpeningTechnique != (video.OpeningTechnique{Timing: "0-3秒", Technique: "晒账单", Script: "我存下了十万"}) {
		t.Errorf("OpeningTechnique = %+v", d.OpeningTechnique)
	}
	if len(d.StructureTimeline) != 1 || d.StructureTimeline[0].Emotion != "震惊" {
		t.Errorf("StructureTimeline = %+v", d.StructureTimeline)
	}
	if d.TargetAudience.PainPoint != "存不下钱" || d.Video.Title != "旧记录" || d.Video.Likes != 5000 {
		t.Errorf("audience/video = %+v / %+v", d.TargetAudience, d.Video)
	}
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsBadID(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"", "../escape", "a/b"} {
		d := sampleDecomposition(id)
		if err := s.Save(d); err == nil {
			t.Errorf("Save(%q) succeeded, want error", id)
		}
	}
}

func TestLoadAllSkipsCorrupt(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"3", "1", "2"} {
		if err := s.Save(sampleDecomposition(id)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.videosDir, "9"+analysisSuffix), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.videosDir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	var ids []string
	for _, d := range all {
		ids = append(ids, d.VideoID)
	}
	if want := []string{"1", "2", "3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("LoadAll ids = %v, want %v", ids, want)
	}
}

func TestLoadAllEmpty(t *testing.T) {
	s := openTestStore(t)
	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("LoadAll returned %d records, want 0", len(all))
	}
}

// TestConcurrentSaveLastWriteWins saves the same video from many goroutines
// and checks the surviving file is one complete record.
func TestConcurrentSaveLastWriteWins(t *testing.T) {
	s := openTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := sampleDecomposition("shared")
			d.CoreTheme = fmt.Sprintf("writer-%d", i)
			if err := s.Save(d); err != nil {
				t.Errorf("Save(writer-%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Load("shared")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var found bool
	for i := 0; i < 16; i++ {
		if got.CoreTheme == fmt.Sprintf("writer-%d", i) {
			found = true
		}
	}
	if !found {
		t.Errorf("CoreTheme = %q, want one of the writers", got.CoreTheme)
	}
}

func TestPropertySaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.StringMatching(`[0-9]{6,19}`).Draw(rt, "id")
		list := rapid.SliceOfN(rapid.String(), 0, 5)

		want := video.Decomposition{
			VideoID:          id,
			Video:            video.Entry{VideoID: id, Title: rapid.String().Draw(rt, "title")},
			CoreTheme:        rapid.String().Draw(rt, "theme"),
			OneLineSummary:   rapid.String().Draw(rt, "summary"),
			ViralReasons:     list.Draw(rt, "reasons"),
			TitlePatterns:    list.Draw(rt, "titles"),
			WritingStyleTags: list.Draw(rt, "style"),
			TrafficHooks:     list.Draw(rt, "hooks"),
			GoldenQuotes:     list.Draw(rt, "quotes"),
			OpeningTechnique: video.OpeningTechnique{Script: rapid.String().Draw(rt, "opening")},
			CoreViewpoints:   list.Draw(rt, "viewpoints"),
			TargetAudience:   video.TargetAudience{PrimaryGroup: rapid.String().Draw(rt, "audience")},
			Raw:              rapid.String().Draw(rt, "raw"),
			CreatedAt:        time.Unix(rapid.Int64Range(0, 4e9).Draw(rt, "ts"), 0).UTC(),
		}

		if err := s.Save(want); err != nil {
			rt.Fatalf("Save: %v", err)
		}
		got, err := s.Load(id)
		if err != nil {
			rt.Fatalf("Load: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			rt.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
		}
	})
}
