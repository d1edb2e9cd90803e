package model

import (
	"fmt"
	"time"
)

// TagDef describes how a single tag is inferred from a source file.
type TagDef struct {
	Detection  Detection `json:"detection"`
	Extraction string    `json:"extraction"`
	Tier       int       `json:"tier"`
}

// Validate ensures the tag definition is well formed.
func (t *TagDef) Validate() error {
	if t.Tier != 1 && t.Tier != 2 {
		return fmt.Errorf("tier must be 1 or 2, got %d", t.Tier)
	}
	if err := t.Detection.Validate(); err != nil {
		return fmt.Errorf("invalid detection: %w", err)
	}
	return nil
}

// CompoundTag derives a tag from a boolean combination of other tags,
// either as required/excluded component lists or a free-form expression.
type CompoundTag struct {
	Expression   string   `json:"expression,omitempty"`
	Severity     string   `json:"severity,omitempty"`
	RequiredTags []string `json:"requiredTags,omitempty"`
	ExcludedTags []string `json:"excludedTags,omitempty"`
}

// Validate ensures the compound tag names at least one combination form.
func (c *CompoundTag) Validate() error {
	if c.Expression == "" && len(c.RequiredTags) == 0 && len(c.ExcludedTags) == 0 {
		return fmt.Errorf("compound tag requires an expression or component tags")
	}
	return nil
}

// TagMeta carries bookkeeping for the tag aggregate.
type TagMeta struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Version     string    `json:"version"`
	TotalTags   int       `json:"totalTags"`
}

// TagData is the complete tag aggregate. It is always replaced wholesale;
// the sync core never patches it field by field.
type TagData struct {
	Categories   map[string]string      `json:"categories"`
	Tags         map[string]TagDef      `json:"tags"`
	CompoundTags map[string]CompoundTag `json:"compoundTags"`
	Meta         TagMeta                `json:"metadata"`
}

// EmptyTagData returns an initialized, empty aggregate.
func EmptyTagData() TagData {
	return TagData{
		Categories:   make(map[string]string),
		Tags:         make(map[string]TagDef),
		CompoundTags: make(map[string]CompoundTag),
	}
}

// Validate checks every tag and compound tag in the aggregate.
func (t *TagData) Validate() error {
	for name, def := range t.Tags {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
	}
	for name, compound := range t.CompoundTags {
		if err := compound.Validate(); err != nil {
			return fmt.Errorf("compound tag %q: %w", name, err)
		}
	}
	return nil
}

// TagCount returns the number of simple tag definitions.
func (t TagData) TagCount() int {
	return len(t.Tags)
}

// CompoundCount returns the number of compound tag definitions.
func (t TagData) CompoundCount() int {
	return len(t.CompoundTags)
}

// Clone returns a deep copy of the aggregate.
func (t TagData) Clone() TagData {
	out := TagData{Meta: t.Meta}
	if t.Categories != nil {
		out.Categories = make(map[string]string, len(t.Categories))
		for k, v := range t.Categories {
			out.Categories[k] = v
		}
	}
	if t.Tags != nil {
		out.Tags = make(map[string]TagDef, len(t.Tags))
		for k, v := range t.Tags {
			out.Tags[k] = v
		}
	}
	if t.CompoundTags != nil {
		out.CompoundTags = make(map[string]CompoundTag, len(t.CompoundTags))
		for k, v := range t.CompoundTags {
			clone := v
			clone.RequiredTags = append([]string(nil), v.RequiredTags...)
			clone.ExcludedTags = append([]string(nil), v.ExcludedTags...)
			out.CompoundTags[k] = clone
		}
	}
	return out
}
