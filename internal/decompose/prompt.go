package decompose

import (
	"fmt"
	"strings"

	"github.com/kalambet/reelkit/internal/video"
)

const systemPrompt = "你是一位专业的抖音视频拆解分析师。"

// maxTranscriptRunes bounds how much transcript text goes into the prompt.
const maxTranscriptRunes = 6000

// BuildPrompt assembles the eleven-dimension analysis request for e. The
// transcript is optional; without it the model works from metadata alone.
func BuildPrompt(e video.Entry, transcript string) string {
	var b strings.Builder

	b.WriteString("请对以下抖音视频进行11维度深度拆解：\n\n")

	b.WriteString("【视频信息】\n")
	fmt.Fprintf(&b, "- 标题: %s\n", e.Title)
	fmt.Fprintf(&b, "- 作者: %s\n", e.Author)
	fmt.Fprintf(&b, "- 点赞: %d | 评论: %d | 分享: %d | 收藏: %d\n", e.Likes, e.Comments, e.Shares, e.Collects)
	if e.Desc != "" && e.Desc != e.Title {
		fmt.Fprintf(&b, "- 描述: %s\n", e.Desc)
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, "- 时长: %d秒\n", e.Duration/1000)
	}

	if t := strings.TrimSpace(transcript); t != "" {
		b.WriteString("\n【口播文本】\n")
		b.WriteString(truncateRunes(t, maxTranscriptRunes))
		b.WriteString("\n")
	}

	b.WriteString("\n【11维度拆解要求】\n")
	b.WriteString("1. 核心主题（10字以内）\n")
	b.WriteString("2. 一句话总结\n")
	b.WriteString("3. 爆款理由（2-3点）\n")
	b.WriteString("4. 标题套路（2-5个标签）\n")
	b.WriteString("5. 写作风格（2-5个标签）\n")
	b.WriteString("6. 流量密码（2-5个标签）\n")
	b.WriteString("7. 金句摘录（3-5句）\n")
	b.WriteString("8. 开头手法（前15秒技巧）\n")
	b.WriteString("9. 结构脉络（按时间段）\n")
	b.WriteString("10. 核心观点（1-2个）\n")
	b.WriteString("11. 目标受众（人群及痛点）\n")

	b.WriteString("\n【输出格式】严格按编号和标签输出，每个列表项单独一行并以“- ”开头：\n")
	b.WriteString("1. 核心主题：...\n")
	b.WriteString("2. 一句话总结：...\n")
	b.WriteString("3. 爆款理由：\n- ...\n")
	b.WriteString("4. 标题套路：\n- ...\n")
	b.WriteString("5. 写作风格：\n- ...\n")
	b.WriteString("6. 流量密码：\n- ...\n")
	b.WriteString("7. 金句摘录：\n- ...\n")
	b.WriteString("8. 开头手法：\n时间：...\n技巧：...\n口播：...\n")
	b.WriteString("9. 结构脉络：\n- 时间段 | 阶段 | 情绪\n")
	b.WriteString("10. 核心观点：\n- ...\n")
	b.WriteString("11. 目标受众：\n主要人群：...\n细分人群：...、...\n痛点：...\n")

	b.WriteString("\n请详细输出，这将存入创作数据库。\n")
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
