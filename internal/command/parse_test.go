package command

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Operation
	}{
		{"chinese decompose", "拆解 1,2,3", Operation{Kind: Decompose, Indices: []int{1, 2, 3}}},
		{"english decompose", "decompose 4 5", Operation{Kind: Decompose, Indices: []int{4, 5}}},
		{"mixed separators", "拆解1，2、3; 4", Operation{Kind: Decompose, Indices: []int{1, 2, 3, 4}}},
		{"full-width digits", "拆解 １，２", Operation{Kind: Decompose, Indices: []int{1, 2}}},
		{"non-numeric dropped", "decompose 1, x, 3", Operation{Kind: Decompose, Indices: []int{1, 3}}},
		{"duplicates removed", "decompose 2,1,2,1", Operation{Kind: Decompose, Indices: []int{2, 1}}},
		{"case insensitive", "DECOMPOSE 7", Operation{Kind: Decompose, Indices: []int{7}}},
		{"bracketed keyword", "【拆解】3", Operation{Kind: Decompose, Indices: []int{3}}},
		{"imitate", "仿写 2", Operation{Kind: Imitate, Index: 2}},
		{"imitate ordinal", "仿写第5个", Operation{Kind: Imitate, Index: 5}},
		{"imitate zero", "imitate 0", Operation{Kind: Imitate, Index: 0}},
		{"imitate negative", "imitate -3", Operation{Kind: Imitate, Index: -3}},
		{"imitate first integer", "imitate 4 6", Operation{Kind: Imitate, Index: 4}},
		{"originate", "原创 AI写作工具推荐", Operation{Kind: Originate, Topic: "AI写作工具推荐"}},
		{"originate trimmed", "originate   how to grow  ", Operation{Kind: Originate, Topic: "how to grow"}},
		{"originate full-width colon", "原创：猫咪日常", Operation{Kind: Originate, Topic: "猫咪日常"}},
		{"embedded in sentence", "帮我拆解一下 2, 4", Operation{Kind: Decompose, Indices: []int{2, 4}}},
		{"list ends at next keyword", "decompose 1 2 then originate 5 tips", Operation{Kind: Decompose, Indices: []int{1, 2}}},
		{"list ends at chinese keyword", "拆解 3、4 再仿写 7", Operation{Kind: Decompose, Indices: []int{3, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseUnrecognized(t *testing.T) {
	for _, in := range []string{
		"",
		"hello there",
		"decompose",
		"拆解 abc",
		"originate   ",
		"仿写",
		"imitate next",
	} {
		if _, err := Parse(in); !errors.Is(err, ErrUnrecognized) {
			t.Errorf("Parse(%q) error = %v, want ErrUnrecognized", in, err)
		}
	}
}

// TestParsePrecedence pins the order in which patterns are tried when text
// contains more than one keyword.
func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"originate a video about how to decompose 3 tasks", Decompose},
		{"imitate 2 then decompose 1", Decompose},
		{"originate a remake, imitate 4", Imitate},
		{"decompose nothing, originate cats", Originate},
		{"拆解 然后 原创 猫咪", Originate},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got.Kind != tt.want {
			t.Errorf("Parse(%q).Kind = %v, want %v", tt.in, got.Kind, tt.want)
		}
	}
}

func TestDecomposeFallsThroughWhenEmpty(t *testing.T) {
	got, err := Parse("decompose, then originate: cat videos")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Kind != Originate || got.Topic != "cat videos" {
		t.Errorf("got %+v, want originate with topic %q", got, "cat videos")
	}
}

func TestPropertyDecomposeIndices(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nums := rapid.SliceOfN(rapid.IntRange(0, 500), 1, 20).Draw(rt, "indices")
		sep := rapid.SampledFrom([]string{",", ", ", " ", "，", "、"}).Draw(rt, "sep")
		keyword := rapid.SampledFrom([]string{"decompose", "拆解", "Decompose"}).Draw(rt, "keyword")

		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = strconv.Itoa(n)
		}
		in := keyword + " " + strings.Join(parts, sep)

		var want []int
		seen := map[int]bool{}
		for _, n := range nums {
			if !seen[n] {
				seen[n] = true
				want = append(want, n)
			}
		}

		got, err := Parse(in)
		if err != nil {
			rt.Fatalf("Parse(%q): %v", in, err)
		}
		if got.Kind != Decompose {
			rt.Fatalf("Parse(%q).Kind = %v, want decompose", in, got.Kind)
		}
		if !reflect.DeepEqual(got.Indices, want) {
			rt.Fatalf("Parse(%q).Indices = %v, want %v", in, got.Indices, want)
		}
	})
}

func TestPropertyImitateIndex(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(-1000, 1000).Draw(rt, "k")
		in := fmt.Sprintf("imitate %d", k)

		got, err := Parse(in)
		if err != nil {
			rt.Fatalf("Parse(%q): %v", in, err)
		}
		if got.Kind != Imitate || got.Index != k {
			rt.Fatalf("Parse(%q) = %+v, want imitate %d", in, got, k)
		}
	})
}

func TestPropertyOriginateTopic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		topic := rapid.StringMatching(`[a-z]{1,10}( [a-z]{1,10}){0,3}`).Draw(rt, "topic")
		pad := rapid.SampledFrom([]string{"", " ", "   ", "\t"}).Draw(rt, "pad")
		in := "originate" + pad + " " + topic + pad

		got, err := Parse(in)
		if err != nil {
			rt.Fatalf("Parse(%q): %v", in, err)
		}
		if got.Kind != Originate || got.Topic != topic {
			rt.Fatalf("Parse(%q) = %+v, want originate %q", in, got, topic)
		}
	})
}
