package command

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrUnrecognized is returned when text does not describe any operation.
var ErrUnrecognized = errors.New("unrecognized instruction")

// Kind identifies which operation an instruction requests.
type Kind int

const (
	Decompose Kind = iota + 1
	Imitate
	Originate
)

func (k Kind) String() string {
	switch k {
	case Decompose:
		return "decompose"
	case Imitate:
		return "imitate"
	case Originate:
		return "originate"
	default:
		return "unknown"
	}
}

// Operation is a parsed instruction. Only the field matching Kind is set:
// Indices for Decompose, Index for Imitate, Topic for Originate.
type Operation struct {
	Kind    Kind
	Indices []int
	Index   int
	Topic   string
}

var (
	decomposeRe = regexp.MustCompile(`(?is)(?:拆解|decompose)(.*)`)
	imitateRe   = regexp.MustCompile(`(?i)(?:仿写|imitate)[\s#第]*(-?\d+)`)
	originateRe = regexp.MustCompile(`(?is)(?:原创|originate)(.*)`)

	listSepRe = regexp.MustCompile(`[,;、\s]+`)

	// keywordRe marks where a following instruction starts, which ends a
	// decompose index list.
	keywordRe = regexp.MustCompile(`(?i)拆解|decompose|仿写|imitate|原创|originate`)
)

// topicLead is stripped from the start of an originate topic, so
// "原创：猫咪" and "originate: cats" carry just the topic.
const topicLead = " \t\n:,;、-"

// Parse turns free-form instruction text into an Operation.
//
// Patterns are tried in a fixed order: decompose, imitate, originate. The
// first one that yields a usable operation wins, so "decompose" without any
// numbers falls through to the later patterns. A decompose index list ends
// at the next instruction keyword. Full-width digits and
// punctuation are folded to ASCII before matching.
func Parse(text string) (Operation, error) {
	s := normalize(text)

	if m := decomposeRe.FindStringSubmatch(s); m != nil {
		list := m[1]
		if loc := keywordRe.FindStringIndex(list); loc != nil {
			list = list[:loc[0]]
		}
		if indices := parseIndices(list); len(indices) > 0 {
			return Operation{Kind: Decompose, Indices: indices}, nil
		}
	}

	if m := imitateRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return Operation{Kind: Imitate, Index: n}, nil
		}
	}

	if m := originateRe.FindStringSubmatch(s); m != nil {
		if topic := strings.TrimSpace(strings.TrimLeft(m[1], topicLead)); topic != "" {
			return Operation{Kind: Originate, Topic: topic}, nil
		}
	}

	return Operation{}, ErrUnrecognized
}

// parseIndices keeps integer tokens in order, dropping anything non-numeric
// and any repeat of an index already seen.
func parseIndices(s string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, tok := range listSepRe.Split(s, -1) {
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

var bracketReplacer = strings.NewReplacer("【", " ", "】", " ")

func normalize(text string) string {
	return bracketReplacer.Replace(norm.NFKC.String(text))
}
