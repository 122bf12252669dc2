package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/reelkit/internal/video"
)

const (
	imitateSystem   = "你是一位资深的短视频脚本策划师。"
	originateSystem = "你是一位资深的短视频脚本策划师，擅长基于数据创作爆款脚本。"
)

// pattern is the slice of a decomposition that originate prompts learn from.
type pattern struct {
	TitlePatterns []string               `json:"titlePattern"`
	WritingStyle  []string               `json:"writingStyle"`
	TrafficHooks  []string               `json:"trafficKeys"`
	Opening       video.OpeningTechnique `json:"opening"`
	Structure     []video.StructureStage `json:"structure"`
}

func patternOf(d video.Decomposition) pattern {
	return pattern{
		TitlePatterns: nonNil(d.TitlePatterns),
		WritingStyle:  nonNil(d.WritingStyleTags),
		TrafficHooks:  nonNil(d.TrafficHooks),
		Opening:       d.OpeningTechnique,
		Structure:     d.StructureTimeline,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeProduct(b *strings.Builder, p Product, withPricing bool) {
	b.WriteString("【产品信息】\n")
	fmt.Fprintf(b, "- 名称: %s\n", p.Name)
	fmt.Fprintf(b, "- 功能: %s\n", p.Features)
	fmt.Fprintf(b, "- 目标用户: %s\n", p.TargetUsers)
	fmt.Fprintf(b, "- 核心卖点: %s\n", p.SellingPoint)
	if withPricing && p.Pricing != "" {
		fmt.Fprintf(b, "- 定价: %s\n", p.Pricing)
	}
	if p.CTA != "" {
		fmt.Fprintf(b, "- 引导话术: %s\n", p.CTA)
	}
	if p.Brief != "" {
		fmt.Fprintf(b, "- 产品资料: %s\n", p.Brief)
	}
}

// writeDecomposition writes every extracted dimension. When extraction
// missed any of them, the model's original reply follows the fields.
func writeDecomposition(b *strings.Builder, d video.Decomposition) {
	fmt.Fprintf(b, "- 标题: %s（作者: %s）\n", d.Video.Title, d.Video.Author)
	fmt.Fprintf(b, "- 核心主题: %s\n", d.CoreTheme)
	fmt.Fprintf(b, "- 一句话总结: %s\n", d.OneLineSummary)
	fmt.Fprintf(b, "- 爆款理由: %s\n", strings.Join(d.ViralReasons, "；"))
	fmt.Fprintf(b, "- 标题套路: %s\n", strings.Join(d.TitlePatterns, "、"))
	fmt.Fprintf(b, "- 写作风格: %s\n", strings.Join(d.WritingStyleTags, "、"))
	fmt.Fprintf(b, "- 流量密码: %s\n", strings.Join(d.TrafficHooks, "、"))
	fmt.Fprintf(b, "- 金句摘录: %s\n", strings.Join(d.GoldenQuotes, " / "))
	o := d.OpeningTechnique
	fmt.Fprintf(b, "- 开头手法: %s %s「%s」\n", o.Timing, o.Technique, o.Script)
	b.WriteString("- 结构脉络:\n")
	for _, st := range d.StructureTimeline {
		fmt.Fprintf(b, "  - %s | %s | %s\n", st.TimeRange, st.Stage, st.Emotion)
	}
	fmt.Fprintf(b, "- 核心观点: %s\n", strings.Join(d.CoreViewpoints, "；"))
	a := d.TargetAudience
	fmt.Fprintf(b, "- 目标受众: %s（细分: %s；痛点: %s）\n", a.PrimaryGroup, strings.Join(a.SubGroups, "、"), a.PainPoint)

	if d.Raw != "" && incomplete(d) {
		b.WriteString("- 原始拆解:\n")
		b.WriteString(d.Raw)
		b.WriteString("\n")
	}
}

func incomplete(d video.Decomposition) bool {
	return d.CoreTheme == "" || d.OneLineSummary == "" ||
		len(d.ViralReasons) == 0 || len(d.TitlePatterns) == 0 ||
		len(d.WritingStyleTags) == 0 || len(d.TrafficHooks) == 0 ||
		len(d.GoldenQuotes) == 0 || d.OpeningTechnique == (video.OpeningTechnique{}) ||
		len(d.StructureTimeline) == 0 || len(d.CoreViewpoints) == 0 ||
		d.TargetAudience.PrimaryGroup == ""
}

// imitatePrompt asks for a script that mirrors d's structure while selling p.
func imitatePrompt(d video.Decomposition, p Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "基于以下视频拆解，为【%s】创作仿写脚本。\n\n", p.Name)

	b.WriteString("【参考视频拆解】\n")
	writeDecomposition(&b, d)
	b.WriteString("\n")

	writeProduct(&b, p, true)

	b.WriteString("\n【要求】\n")
	b.WriteString("1. 严格遵循参考视频的结构和情绪曲线\n")
	b.WriteString("2. 使用类似的标题套路和金句风格\n")
	b.WriteString("3. 自然融入产品信息\n")
	b.WriteString("4. 包含分镜表格\n")
	b.WriteString("5. 总时长3-4分钟\n")
	b.WriteString("\n请输出完整的视频脚本。\n")
	return b.String()
}

// originatePrompt asks for a new script on topic, learning from patterns.
func originatePrompt(topic string, patterns []video.Decomposition, p Product) (string, error) {
	sample := make([]pattern, 0, len(patterns))
	for _, d := range patterns {
		sample = append(sample, patternOf(d))
	}
	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding patterns: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "请基于以下爆款数据库特点，创作一个关于「%s」的原创视频脚本。\n\n", topic)

	b.WriteString("【数据库爆款特点】\n")
	b.Write(data)
	b.WriteString("\n\n")

	writeProduct(&b, p, false)

	b.WriteString("\n【创作要求】\n")
	b.WriteString("1. 参考数据库中的爆款结构\n")
	b.WriteString("2. 使用经过验证的标题套路和写作风格\n")
	b.WriteString("3. 融入流量密码元素\n")
	b.WriteString("4. 针对目标受众的痛点\n")
	b.WriteString("5. 包含分镜表格\n")
	b.WriteString("6. 总时长3-4分钟\n")

	b.WriteString("\n【输出格式】\n")
	b.WriteString("1. 视频标题\n")
	b.WriteString("2. 黄金3秒钩子\n")
	b.WriteString("3. 完整口播脚本（按时间段）\n")
	b.WriteString("4. 分镜表格\n")
	b.WriteString("5. BGM推荐\n")
	b.WriteString("6. 话题标签\n")
	b.WriteString("\n请输出完整的原创脚本。\n")
	return b.String(), nil
}
