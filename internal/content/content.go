package content

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

type Topic struct {
	ID         string `yaml:"id" json:"id"`
	LabelEN    string `yaml:"label_en" json:"label_en"`
	LabelZH    string `yaml:"label_zh" json:"label_zh"`
	PromptHint string `yaml:"prompt_hint" json:"prompt_hint"`
}

type Dimension struct {
	ID string `yaml:"id" json:"id"`
	EN string `yaml:"en" json:"en"`
	ZH string `yaml:"zh" json:"zh"`
}

// Catalog is the static conversation content: topics learners pick from and the issue
// dimensions reviews are graded on. Both keep file order.
type Catalog struct {
	Topics     []Topic     `yaml:"topics"`
	Dimensions []Dimension `yaml:"issue_dimensions"`

	topicsByID map[string]Topic
	dimsByID   map[string]Dimension
}

// Load reads path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	raw := defaultContent
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read content file: %w", err)
		}
		raw = b
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	c.topicsByID = make(map[string]Topic, len(c.Topics))
	for _, t := range c.Topics {
		if t.ID == "" {
			return nil, fmt.Errorf("topic with empty id")
		}
		if _, dup := c.topicsByID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate topic id %q", t.ID)
		}
		c.topicsByID[t.ID] = t
	}
	c.dimsByID = make(map[string]Dimension, len(c.Dimensions))
	for _, d := range c.Dimensions {
		c.dimsByID[d.ID] = d
	}
	if len(c.Dimensions) == 0 {
		return nil, fmt.Errorf("no issue dimensions configured")
	}
	return &c, nil
}

func (c *Catalog) Topic(id string) (Topic, bool) {
	t, ok := c.topicsByID[id]
	return t, ok
}

func (c *Catalog) IsDimension(id string) bool {
	_, ok := c.dimsByID[id]
	return ok
}

func (c *Catalog) Dimension(id string) (Dimension, bool) {
	d, ok := c.dimsByID[id]
	return d, ok
}
