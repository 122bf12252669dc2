package decompose

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kalambet/reelkit/internal/video"
)

type field int

const (
	fCoreTheme field = iota
	fSummary
	fViralReasons
	fTitlePatterns
	fWritingStyle
	fTrafficHooks
	fGoldenQuotes
	fOpening
	fStructure
	fViewpoints
	fAudience
	numFields
)

// labels lists the accepted section names per field. Chinese labels come
// first; English labels are matched case-insensitively.
var labels = [numFields][]string{
	fCoreTheme:     {"核心主题", "core theme"},
	fSummary:       {"一句话总结", "一句话概括", "one-line summary", "summary"},
	fViralReasons:  {"爆款理由", "爆款原因", "viral reasons"},
	fTitlePatterns: {"标题套路", "title patterns", "title pattern"},
	fWritingStyle:  {"写作风格", "文案风格", "writing style"},
	fTrafficHooks:  {"流量密码", "traffic hooks", "traffic keys"},
	fGoldenQuotes:  {"金句摘录", "金句", "golden quotes"},
	fOpening:       {"开头手法", "开头技巧", "opening technique", "opening"},
	fStructure:     {"结构脉络", "结构框架", "structure timeline", "structure"},
	fViewpoints:    {"核心观点", "core viewpoints"},
	fAudience:      {"目标受众", "target audience"},
}

var (
	headerPrefixRe = regexp.MustCompile(`^[\s#>*]*(?:(?:\d{1,2}|[一二三四五六七八九十]{1,3})\s*[.、．)）]\s*)?[*\s]*`)
	annotationRe   = regexp.MustCompile(`^\s*[（(][^）)]*[）)]`)
	bulletRe       = regexp.MustCompile(`^\s*(?:[-*•·]|\d{1,2}[.、．)）])\s*`)
	tagSepRe       = regexp.MustCompile(`\s*[、，,/|]\s*`)
	tableRuleRe    = regexp.MustCompile(`^[\s|:\-]+$`)
)

// ParseAnalysis extracts the eleven dimensions from a model reply. Extraction
// is best effort: a section that cannot be found leaves its field empty and
// never fails. The reply itself is kept in Raw.
func ParseAnalysis(raw string) video.Decomposition {
	sec := splitSections(raw)

	d := video.Decomposition{
		CoreTheme:         scalar(sec[fCoreTheme]),
		OneLineSummary:    scalar(sec[fSummary]),
		ViralReasons:      list(sec[fViralReasons], false),
		TitlePatterns:     list(sec[fTitlePatterns], true),
		WritingStyleTags:  list(sec[fWritingStyle], true),
		TrafficHooks:      list(sec[fTrafficHooks], true),
		GoldenQuotes:      quotes(sec[fGoldenQuotes]),
		OpeningTechnique:  opening(sec[fOpening]),
		StructureTimeline: timeline(sec[fStructure]),
		CoreViewpoints:    list(sec[fViewpoints], false),
		TargetAudience:    audience(sec[fAudience]),
		Raw:               raw,
	}
	return d
}

// section holds the text after a header's colon plus the lines that follow
// it up to the next recognised header.
type section struct {
	found bool
	lines []string
}

func splitSections(raw string) [numFields]section {
	var out [numFields]section
	current := field(-1)

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if f, rest, ok := matchHeader(line); ok {
			if out[f].found {
				// A repeated label belongs to the section we are in.
				if current >= 0 {
					out[current].lines = append(out[current].lines, line)
				}
				continue
			}
			current = f
			out[f].found = true
			if rest != "" {
				out[f].lines = append(out[f].lines, rest)
			}
			continue
		}
		if current >= 0 {
			out[current].lines = append(out[current].lines, line)
		}
	}
	return out
}

// matchHeader reports whether line opens a section, e.g. "3. 爆款理由：",
// "**标题套路**: 数字+悬念" or "### 8. 开头手法（前15秒技巧）".
func matchHeader(line string) (field, string, bool) {
	s := headerPrefixRe.ReplaceAllString(line, "")
	lower := strings.ToLower(s)

	for f := field(0); f < numFields; f++ {
		for _, l := range labels[f] {
			if !strings.HasPrefix(lower, l) {
				continue
			}
			after := s[len(l):]
			after = strings.TrimLeft(after, "* ")
			after = annotationRe.ReplaceAllString(after, "")
			after = strings.TrimLeft(after, "* ")
			switch {
			case after == "":
				return f, "", true
			case strings.HasPrefix(after, "："):
				return f, cleanText(strings.TrimPrefix(after, "：")), true
			case strings.HasPrefix(after, ":"):
				return f, cleanText(strings.TrimPrefix(after, ":")), true
			}
		}
	}
	return 0, "", false
}

// cleanText strips markdown emphasis and surrounding whitespace.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

func scalar(sec section) string {
	for _, l := range sec.lines {
		if s := cleanText(bulletRe.ReplaceAllString(l, "")); s != "" {
			return s
		}
	}
	return ""
}

// list returns one item per non-blank line with bullet or number markers
// removed. With splitTags, a section written on a single line such as
// "口语化、干货、接地气" is split on enumeration commas.
func list(sec section, splitTags bool) []string {
	var items []string
	for _, l := range sec.lines {
		if s := cleanText(bulletRe.ReplaceAllString(l, "")); s != "" {
			items = append(items, s)
		}
	}
	if splitTags && len(items) == 1 {
		var tags []string
		for _, t := range tagSepRe.Split(items[0], -1) {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		return tags
	}
	return items
}

func quotes(sec section) []string {
	items := list(sec, false)
	for i, q := range items {
		items[i] = strings.TrimFunc(q, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(`"'“”‘’「」『』`, r)
		})
	}
	return items
}

// subField finds "label：value" inside a section.
func subField(sec section, names ...string) (string, bool) {
	for _, l := range sec.lines {
		s := cleanText(bulletRe.ReplaceAllString(l, ""))
		lower := strings.ToLower(s)
		for _, n := range names {
			if !strings.HasPrefix(lower, n) {
				continue
			}
			rest := strings.TrimSpace(s[len(n):])
			if v, ok := strings.CutPrefix(rest, "："); ok {
				return strings.TrimSpace(v), true
			}
			if v, ok := strings.CutPrefix(rest, ":"); ok {
				return strings.TrimSpace(v), true
			}
		}
	}
	return "", false
}

func opening(sec section) video.OpeningTechnique {
	var o video.OpeningTechnique
	var found bool
	if v, ok := subField(sec, "时间", "时段", "timing"); ok {
		o.Timing, found = v, true
	}
	if v, ok := subField(sec, "技巧", "手法", "technique"); ok {
		o.Technique, found = v, true
	}
	if v, ok := subField(sec, "口播", "台词", "文案", "script"); ok {
		o.Script, found = strings.Trim(v, `"“”「」`), true
	}
	if !found {
		o.Technique = strings.Join(list(sec, false), "；")
	}
	return o
}

func timeline(sec section) []video.StructureStage {
	var stages []video.StructureStage
	for _, l := range sec.lines {
		s := cleanText(bulletRe.ReplaceAllString(l, ""))
		if s == "" || tableRuleRe.MatchString(s) {
			continue
		}

		var st video.StructureStage
		if strings.Contains(s, "|") {
			parts := strings.Split(strings.Trim(s, "| "), "|")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			if isTableHeader(parts) {
				continue
			}
			st.TimeRange = parts[0]
			if len(parts) > 1 {
				st.Stage = parts[1]
			}
			if len(parts) > 2 {
				st.Emotion = strings.Join(parts[2:], " ")
			}
		} else if k, v, ok := cutColon(s); ok {
			st.TimeRange, st.Stage = k, v
		} else {
			st.Stage = s
		}
		stages = append(stages, st)
	}
	return stages
}

func isTableHeader(parts []string) bool {
	return len(parts) > 0 && (parts[0] == "时间段" || parts[0] == "时间" || strings.EqualFold(parts[0], "time"))
}

func cutColon(s string) (string, string, bool) {
	for _, sep := range []string{"：", ":"} {
		if k, v, ok := strings.Cut(s, sep); ok && k != "" {
			return strings.TrimSpace(k), strings.TrimSpace(v), true
		}
	}
	return "", "", false
}

func audience(sec section) video.TargetAudience {
	var a video.TargetAudience
	var found bool
	if v, ok := subField(sec, "主要人群", "核心人群", "人群", "primary"); ok {
		a.PrimaryGroup, found = v, true
	}
	if v, ok := subField(sec, "细分人群", "细分", "sub groups", "subgroups"); ok {
		for _, g := range tagSepRe.Split(v, -1) {
			if g = strings.TrimSpace(g); g != "" {
				a.SubGroups = append(a.SubGroups, g)
			}
		}
		found = true
	}
	if v, ok := subField(sec, "痛点", "pain point", "pain"); ok {
		a.PainPoint, found = v, true
	}
	if !found {
		a.PrimaryGroup = strings.Join(list(sec, false), "；")
	}
	return a
}
