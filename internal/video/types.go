package video

import "time"

// Engagement holds the interaction counters captured by the collection job.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Collects int64 `json:"collects"`
}

// Index is the engagement index shown in queue reports, in thousands:
// (likes + comments + shares) / 1000.
func (e Engagement) Index() float64 {
	return float64(e.Likes+e.Comments+e.Shares) / 1000
}

// Entry is one candidate video in the daily queue. The JSON layout matches
// the snapshot written by the collection job, so engagement counters sit at
// the top level of each entry.
type Entry struct {
	VideoID  string `json:"aweme_id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ShareURL string `json:"share_url,omitempty"`
	Engagement

	Desc       string `json:"desc,omitempty"`
	CreateTime int64  `json:"create_time,omitempty"`
	SecUID     string `json:"sec_uid,omitempty"`
	Duration   int64  `json:"duration,omitempty"` // milliseconds

	// MediaURL is a download URL already resolved from ShareURL. Resolved
	// URLs expire, so it is never persisted.
	MediaURL string `json:"-"`
}

// Queue is a snapshot of the daily candidate list. Entries are addressed by
// 1-based position.
type Queue struct {
	Date      string  `json:"date"`
	Timestamp string  `json:"timestamp,omitempty"`
	Videos    []Entry `json:"videos"`
	Status    string  `json:"status,omitempty"`
}

// Len reports the number of entries, treating a nil queue as empty.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Videos)
}

// OpeningTechnique describes how a video hooks viewers in its first seconds.
type OpeningTechnique struct {
	Timing    string `json:"timing"`    // e.g. "0-3秒"
	Technique string `json:"technique"` // e.g. "反常识提问"
	Script    string `json:"script"`    // verbatim opening line
}

// StructureStage is one segment of the video's narrative timeline.
type StructureStage struct {
	TimeRange string `json:"time_range"`
	Stage     string `json:"stage"`
	Emotion   string `json:"emotion"`
}

// TargetAudience describes who the video speaks to.
type TargetAudience struct {
	PrimaryGroup string   `json:"primary_group"`
	SubGroups    []string `json:"sub_groups"`
	PainPoint    string   `json:"pain_point"`
}

// Decomposition is the structured analysis of one video along eleven
// dimensions. Raw always keeps the full model reply so that fields the
// extractor missed can be recovered later.
type Decomposition struct {
	VideoID string `json:"video_id"`
	Video   Entry  `json:"video_info"`

	CoreTheme         string           `json:"core_theme"`
	OneLineSummary    string           `json:"one_line_summary"`
	ViralReasons      []string         `json:"viral_reasons"`
	TitlePatterns     []string         `json:"title_patterns"`
	WritingStyleTags  []string         `json:"writing_style_tags"`
	TrafficHooks      []string         `json:"traffic_hooks"`
	GoldenQuotes      []string         `json:"golden_quotes"`
	OpeningTechnique  OpeningTechnique `json:"opening_technique"`
	StructureTimeline []StructureStage `json:"structure_timeline"`
	CoreViewpoints    []string         `json:"core_viewpoints"`
	TargetAudience    TargetAudience   `json:"target_audience"`

	Transcript string    `json:"transcript,omitempty"`
	Raw        string    `json:"raw"`
	CreatedAt  time.Time `json:"created_at"`
}
