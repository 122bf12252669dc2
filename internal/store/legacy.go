package store

import (
	"encoding/json"

	"github.com/kalambet/reelkit/internal/video"
)

// legacyAnalysis is the record shape written by the earlier collection
// scripts: the dimensions sit under "analysis" keyed by numbered Chinese
// labels, and only some of them were ever filled.
type legacyAnalysis struct {
	Raw            string   `json:"raw"`
	CoreTheme      string   `json:"1_核心主题"`
	OneLineSummary string   `json:"2_一句话总结"`
	ViralReasons   []string `json:"3_爆款理由"`
	TitlePatterns  []string `json:"4_标题套路"`
	WritingStyle   []string `json:"5_写作风格"`
	TrafficHooks   []string `json:"6_流量密码"`
	GoldenQuotes   []string `json:"7_金句摘录"`
	Opening        struct {
		Timing    string `json:"时间"`
		Technique string `json:"技巧"`
		Script    string `json:"口播"`
	} `json:"8_开头手法"`
	Structure []struct {
		TimeRange string `json:"时间段"`
		Stage     string `json:"阶段"`
		Emotion   string `json:"情绪"`
	} `json:"9_结构脉络"`
	CoreViewpoints []string `json:"10_核心观点"`
	Audience       struct {
		PrimaryGroup string   `json:"主要人群"`
		SubGroups    []string `json:"细分"`
		PainPoint    string   `json:"痛点"`
	} `json:"11_目标受众"`
}

// applyLegacy fills d from a legacy "analysis" object in data, leaving d
// untouched when data carries none.
func applyLegacy(data []byte, d *video.Decomposition) error {
	var rec struct {
		Analysis *legacyAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	a := rec.Analysis
	if a == nil {
		return nil
	}

	d.Raw = a.Raw
	d.CoreTheme = a.CoreTheme
	d.OneLineSummary = a.OneLineSummary
	d.ViralReasons = a.ViralReasons
	d.TitlePatterns = a.TitlePatterns
	d.WritingStyleTags = a.WritingStyle
	d.TrafficHooks = a.TrafficHooks
	d.GoldenQuotes = a.GoldenQuotes
	d.OpeningTechnique = video.OpeningTechnique(a.Opening)
	d.StructureTimeline = nil
	for _, st := range a.Structure {
		d.StructureTimeline = append(d.StructureTimeline, video.StructureStage(st))
	}
	d.CoreViewpoints = a.CoreViewpoints
	d.TargetAudience = video.TargetAudience(a.Audience)
	return nil
}
