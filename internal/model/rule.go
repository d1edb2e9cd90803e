// Package model defines the core data structures for the rulesync application.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Rule represents a single static-analysis inspection rule.
type Rule struct {
	ExtractedAt  time.Time `json:"extractedAt,omitempty"`
	RuleID       string    `json:"ruleId"`
	Category     string    `json:"category"`
	Severity     string    `json:"severity"`
	CheckType    string    `json:"checkType"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Message      string    `json:"message"`
	Suggestion   string    `json:"suggestion"`
	TagCondition string    `json:"tagCondition,omitempty"`
	SourceDoc    string    `json:"sourceDoc,omitempty"`
	RequiredTags []string  `json:"requiredTags,omitempty"`
	ExcludedTags []string  `json:"excludedTags,omitempty"`
	AntiPatterns []string  `json:"antiPatterns,omitempty"`
	GoodPatterns []string  `json:"goodPatterns,omitempty"`
	IsActive     bool      `json:"isActive"`
}

// Severity level constants.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// ruleIDPattern matches the canonical <sourcePrefix>.<categoryAbbrev>.<section> form.
var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// Validate ensures the rule has valid data.
func (r *Rule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("rule ID is required")
	}

	if !ruleIDPattern.MatchString(r.RuleID) {
		return fmt.Errorf("rule ID %q must have the form <source>.<category>.<section>", r.RuleID)
	}

	if r.Title == "" {
		return fmt.Errorf("title is required")
	}

	if r.Severity != "" {
		switch r.Severity {
		case SeverityError, SeverityWarning, SeverityInfo:
		default:
			return fmt.Errorf("invalid severity %q: must be error, warning, or info", r.Severity)
		}
	}

	// Detection patterns must be valid regular expressions.
	for _, p := range r.AntiPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid anti-pattern %q: %w", p, err)
		}
	}
	for _, p := range r.GoodPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid good-pattern %q: %w", p, err)
		}
	}

	return nil
}

// SourcePrefix returns the leading component of the rule ID.
func (r *Rule) SourcePrefix() string {
	if idx := strings.Index(r.RuleID, "."); idx > 0 {
		return r.RuleID[:idx]
	}
	return r.RuleID
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	clone := r
	clone.RequiredTags = append([]string(nil), r.RequiredTags...)
	clone.ExcludedTags = append([]string(nil), r.ExcludedTags...)
	clone.AntiPatterns = append([]string(nil), r.AntiPatterns...)
	clone.GoodPatterns = append([]string(nil), r.GoodPatterns...)
	return clone
}

// RulePatch describes a partial update to a rule. Nil fields are left unchanged.
type RulePatch struct {
	Category     *string   `json:"category,omitempty"`
	Severity     *string   `json:"severity,omitempty"`
	CheckType    *string   `json:"checkType,omitempty"`
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Message      *string   `json:"message,omitempty"`
	Suggestion   *string   `json:"suggestion,omitempty"`
	TagCondition *string   `json:"tagCondition,omitempty"`
	SourceDoc    *string   `json:"sourceDoc,omitempty"`
	RequiredTags *[]string `json:"requiredTags,omitempty"`
	ExcludedTags *[]string `json:"excludedTags,omitempty"`
	AntiPatterns *[]string `json:"antiPatterns,omitempty"`
	GoodPatterns *[]string `json:"goodPatterns,omitempty"`
	IsActive     *bool     `json:"isActive,omitempty"`
}

// IsZero reports whether the patch carries no changes.
func (p RulePatch) IsZero() bool {
	return p == RulePatch{}
}

// Apply returns a copy of rule with the patch's non-nil fields applied.
// The rule ID is never changed by a patch.
func (p RulePatch) Apply(rule Rule) Rule {
	out := rule.Clone()
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Severity != nil {
		out.Severity = *p.Severity
	}
	if p.CheckType != nil {
		out.CheckType = *p.CheckType
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Message != nil {
		out.Message = *p.Message
	}
	if p.Suggestion != nil {
		out.Suggestion = *p.Suggestion
	}
	if p.TagCondition != nil {
		out.TagCondition = *p.TagCondition
	}
	if p.SourceDoc != nil {
		out.SourceDoc = *p.SourceDoc
	}
	if p.RequiredTags != nil {
		out.RequiredTags = append([]string(nil), *p.RequiredTags...)
	}
	if p.ExcludedTags != nil {
		out.ExcludedTags = append([]string(nil), *p.ExcludedTags...)
	}
	if p.AntiPatterns != nil {
		out.AntiPatterns = append([]string(nil), *p.AntiPatterns...)
	}
	if p.GoodPatterns != nil {
		out.GoodPatterns = append([]string(nil), *p.GoodPatterns...)
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	return out
}
