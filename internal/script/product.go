package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"
)

// Product is what a generated script promotes.
type Product struct {
	Name         string `yaml:"name" json:"name"`
	Features     string `yaml:"features" json:"features"`
	TargetUsers  string `yaml:"target_users" json:"target_users"`
	SellingPoint string `yaml:"selling_point" json:"selling_point"`
	Pricing      string `yaml:"pricing" json:"pricing"`
	CTA          string `yaml:"cta" json:"cta"`
	// Brief is free-form background, usually extracted from a PDF.
	Brief string `yaml:"brief,omitempty" json:"brief,omitempty"`
	// BriefPDF points at a product brief whose text fills Brief on load.
	BriefPDF string `yaml:"brief_pdf,omitempty" json:"brief_pdf,omitempty"`
}

// DefaultProduct is used when no catalog is configured.
func DefaultProduct() Product {
	return Product{
		Name:         "AwriteAi",
		Features:     "一键生成多平台文案、爆款标题、智能选题、数据分析",
		TargetUsers:  "内容创作者、营销人员、中小企业主",
		SellingPoint: "节省80%文案时间，提升3倍点击转化率",
		Pricing:      "免费试用7天，月付99元起",
		CTA:          "评论区扣1领7天免费试用",
	}
}

// Catalog is a named set of products.
type Catalog struct {
	Default  string    `yaml:"default"`
	Products []Product `yaml:"products"`
}

// LoadCatalog reads a YAML catalog from path. An empty path or a missing file
// yields a catalog holding only DefaultProduct.
func LoadCatalog(path string) (*Catalog, error) {
	builtin := &Catalog{Default: DefaultProduct().Name, Products: []Product{DefaultProduct()}}
	if path == "" {
		return builtin, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return builtin, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if len(c.Products) == 0 {
		return builtin, nil
	}

	for i, p := range c.Products {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog %s: product %d has no name", path, i+1)
		}
		if p.BriefPDF != "" && p.Brief == "" {
			brief, err := BriefFromPDF(p.BriefPDF)
			if err != nil {
				return nil, fmt.Errorf("product %s: %w", p.Name, err)
			}
			c.Products[i].Brief = brief
		}
	}
	if c.Default == "" {
		c.Default = c.Products[0].Name
	}
	return &c, nil
}

// Lookup returns the product called name, or the catalog default when name
// is empty.
func (c *Catalog) Lookup(name string) (Product, error) {
	if name == "" {
		name = c.Default
	}
	for _, p := range c.Products {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("product %q not in catalog", name)
}

// maxBriefRunes bounds how much brief text is carried into prompts.
const maxBriefRunes = 3000

// BriefFromPDF extracts the plain text of a product brief.
func BriefFromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening brief %s: %w", path, err)
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting brief text: %w", err)
	}
	var b bytes.Buffer
	if _, err := b.ReadFrom(rd); err != nil {
		return "", fmt.Errorf("reading brief text: %w", err)
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if r := []rune(text); len(r) > maxBriefRunes {
		text = string(r[:maxBriefRunes])
	}
	return text, nil
}
