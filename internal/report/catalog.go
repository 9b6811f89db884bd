// Package report turns transcripts into structured documents, preferring a
// remote language model and falling back to a local extractive generator.
package report

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"audioreport/internal/model"
)

//go:embed templates.yaml
var templatesYAML []byte

// Layouts of the local fallback output.
const (
	LayoutSections  = "sections"
	LayoutParagraph = "paragraph"
)

// Sources a skeleton section can take its text from.
const (
	SourceIntro      = "intro"
	SourceMethods    = "methods"
	SourceConclusion = "conclusion"
)

// SkeletonSection is one heading of a fallback document. Exactly one of
// Source or Text is set.
type SkeletonSection struct {
	Heading string `yaml:"heading"`
	Source  string `yaml:"source"`
	Text    string `yaml:"text"`
}

// Template describes one document type.
type Template struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Icon        string            `yaml:"icon"`
	Sections    []string          `yaml:"sections"`
	Prompt      string            `yaml:"prompt"`
	Header      string            `yaml:"header"`
	Layout      string            `yaml:"layout"`
	WordLimit   int               `yaml:"word_limit"`
	Skeleton    []SkeletonSection `yaml:"skeleton"`

	header *template.Template
}

// TemplateInfo is the public catalog entry.
type TemplateInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Sections    []string `json:"sections"`
	Icon        string   `json:"icon"`
}

// Catalog is the immutable set of templates.
type Catalog struct {
	defaultID string
	order     []string
	byID      map[string]*Template
}

type catalogFile struct {
	Default   string      `yaml:"default"`
	Templates []*Template `yaml:"templates"`
}

// NewCatalog loads the built-in templates.
func NewCatalog() (*Catalog, error) {
	return LoadCatalog(templatesYAML)
}

// LoadCatalog parses and validates a template file.
func LoadCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	c := &Catalog{defaultID: f.Default, byID: make(map[string]*Template, len(f.Templates))}
	for _, t := range f.Templates {
		if err := t.init(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.ID)
		}
		c.byID[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	if _, ok := c.byID[c.defaultID]; !ok {
		return nil, fmt.Errorf("default template %q is not defined", c.defaultID)
	}
	return c, nil
}

func (t *Template) init() error {
	if t.ID == "" {
		return fmt.Errorf("template without id")
	}
	h, err := template.New(t.ID).Option("missingkey=error").Parse(t.Header)
	if err != nil {
		return fmt.Errorf("template %s: header: %w", t.ID, err)
	}
	t.header = h

	switch t.Layout {
	case LayoutParagraph:
		if t.WordLimit <= 0 {
			return fmt.Errorf("template %s: paragraph layout needs word_limit", t.ID)
		}
	case LayoutSections:
		if len(t.Skeleton) == 0 {
			return fmt.Errorf("template %s: empty skeleton", t.ID)
		}
		for _, s := range t.Skeleton {
			switch {
			case s.Text != "" && s.Source != "":
				return fmt.Errorf("template %s: section %q has both text and source", t.ID, s.Heading)
			case s.Text != "":
			case s.Source == SourceIntro, s.Source == SourceMethods, s.Source == SourceConclusion:
			default:
				return fmt.Errorf("template %s: section %q has unknown source %q", t.ID, s.Heading, s.Source)
			}
		}
	default:
		return fmt.Errorf("template %s: unknown layout %q", t.ID, t.Layout)
	}
	return nil
}

// Resolve returns the template for id, or the default one when id is
// empty or unknown.
func (c *Catalog) Resolve(id string) *Template {
	if t, ok := c.byID[id]; ok {
		return t
	}
	return c.byID[c.defaultID]
}

// DefaultID is the id used for unknown templates.
func (c *Catalog) DefaultID() string { return c.defaultID }

// IDs lists template ids in file order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Info returns the public catalog keyed by id.
func (c *Catalog) Info() map[string]TemplateInfo {
	out := make(map[string]TemplateInfo, len(c.byID))
	for id, t := range c.byID {
		out[id] = TemplateInfo{
			Name:        t.Name,
			Description: t.Description,
			Sections:    append([]string(nil), t.Sections...),
			Icon:        t.Icon,
		}
	}
	return out
}

// RenderHeader renders the metadata block placed above the report body.
func (t *Template) RenderHeader(meta model.Metadata) (string, error) {
	var b strings.Builder
	if err := t.header.Execute(&b, meta); err != nil {
		return "", fmt.Errorf("render %s header: %w", t.ID, err)
	}
	b.WriteString("\n")
	return b.String(), nil
}
