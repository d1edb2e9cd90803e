package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DetectionKind identifies how a tag is detected in source files.
type DetectionKind string

// Detection kind constants.
const (
	DetectionRegex      DetectionKind = "regex"
	DetectionAST        DetectionKind = "ast"
	DetectionASTContext DetectionKind = "ast_context"
	DetectionLLM        DetectionKind = "llm"
)

// Detection is a tagged union over the supported detection strategies.
// Exactly one variant field is set, matching Kind.
type Detection struct {
	Regex      *RegexDetection      `json:"-"`
	AST        *ASTDetection        `json:"-"`
	ASTContext *ASTContextDetection `json:"-"`
	LLM        *LLMDetection        `json:"-"`
	Kind       DetectionKind        `json:"-"`
}

// RegexDetection matches source text against a regular expression.
type RegexDetection struct {
	Pattern string `json:"pattern"`
	Flags   string `json:"flags,omitempty"`
}

// ASTDetection matches against the syntax tree by node type and query.
type ASTDetection struct {
	NodeType string `json:"nodeType"`
	Query    string `json:"query,omitempty"`
}

// ASTContextDetection is an AST match restricted to a surrounding context.
type ASTContextDetection struct {
	NodeType string `json:"nodeType"`
	Query    string `json:"query,omitempty"`
	Context  string `json:"context"`
}

// LLMDetection delegates detection to a model evaluated against criteria text.
type LLMDetection struct {
	Criteria string `json:"criteria"`
}

// detectionEnvelope is the wire form: a type discriminator plus the
// variant payload flattened alongside it. The same shape is used for
// JSON and YAML.
type detectionEnvelope struct {
	Type     DetectionKind `json:"type" yaml:"type"`
	Pattern  string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Flags    string        `json:"flags,omitempty" yaml:"flags,omitempty"`
	NodeType string        `json:"nodeType,omitempty" yaml:"nodeType,omitempty"`
	Query    string        `json:"query,omitempty" yaml:"query,omitempty"`
	Context  string        `json:"context,omitempty" yaml:"context,omitempty"`
	Criteria string        `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// NewRegexDetection builds a regex detection.
func NewRegexDetection(pattern, flags string) Detection {
	return Detection{Kind: DetectionRegex, Regex: &RegexDetection{Pattern: pattern, Flags: flags}}
}

// NewASTDetection builds an AST detection.
func NewASTDetection(nodeType, query string) Detection {
	return Detection{Kind: DetectionAST, AST: &ASTDetection{NodeType: nodeType, Query: query}}
}

// NewASTContextDetection builds an AST detection scoped to a context.
func NewASTContextDetection(nodeType, query, context string) Detection {
	return Detection{Kind: DetectionASTContext, ASTContext: &ASTContextDetection{NodeType: nodeType, Query: query, Context: context}}
}

// NewLLMDetection builds an LLM-criteria detection.
func NewLLMDetection(criteria string) Detection {
	return Detection{Kind: DetectionLLM, LLM: &LLMDetection{Criteria: criteria}}
}

// Validate ensures the union is well formed: the kind is known and the
// matching variant is populated.
func (d Detection) Validate() error {
	switch d.Kind {
	case DetectionRegex:
		if d.Regex == nil || d.Regex.Pattern == "" {
			return fmt.Errorf("regex detection requires a pattern")
		}
	case DetectionAST:
		if d.AST == nil || d.AST.NodeType == "" {
			return fmt.Errorf("ast detection requires a node type")
		}
	case DetectionASTContext:
		if d.ASTContext == nil || d.ASTContext.NodeType == "" {
			return fmt.Errorf("ast_context detection requires a node type")
		}
		if d.ASTContext.Context == "" {
			return fmt.Errorf("ast_context detection requires a context")
		}
	case DetectionLLM:
		if d.LLM == nil || d.LLM.Criteria == "" {
			return fmt.Errorf("llm detection requires criteria")
		}
	default:
		return fmt.Errorf("unknown detection kind %q", d.Kind)
	}
	return nil
}

// MarshalJSON encodes the detection with its type discriminator.
func (d Detection) MarshalJSON() ([]byte, error) {
	env, err := d.toEnvelope()
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a detection, rejecting unknown discriminators.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var env detectionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to unmarshal detection: %w", err)
	}
	return d.fromEnvelope(env)
}

// MarshalYAML encodes the detection in the same envelope form as JSON.
func (d Detection) MarshalYAML() (any, error) {
	return d.toEnvelope()
}

// UnmarshalYAML decodes a detection from the envelope form.
func (d *Detection) UnmarshalYAML(node *yaml.Node) error {
	var env detectionEnvelope
	if err := node.Decode(&env); err != nil {
		return fmt.Errorf("failed to unmarshal detection: %w", err)
	}
	return d.fromEnvelope(env)
}

func (d Detection) toEnvelope() (detectionEnvelope, error) {
	env := detectionEnvelope{Type: d.Kind}
	switch d.Kind {
	case DetectionRegex:
		if d.Regex != nil {
			env.Pattern = d.Regex.Pattern
			env.Flags = d.Regex.Flags
		}
	case DetectionAST:
		if d.AST != nil {
			env.NodeType = d.AST.NodeType
			env.Query = d.AST.Query
		}
	case DetectionASTContext:
		if d.ASTContext != nil {
			env.NodeType = d.ASTContext.NodeType
			env.Query = d.ASTContext.Query
			env.Context = d.ASTContext.Context
		}
	case DetectionLLM:
		if d.LLM != nil {
			env.Criteria = d.LLM.Criteria
		}
	default:
		return detectionEnvelope{}, fmt.Errorf("cannot marshal unknown detection kind %q", d.Kind)
	}
	return env, nil
}

func (d *Detection) fromEnvelope(env detectionEnvelope) error {
	switch env.Type {
	case DetectionRegex:
		*d = NewRegexDetection(env.Pattern, env.Flags)
	case DetectionAST:
		*d = NewASTDetection(env.NodeType, env.Query)
	case DetectionASTContext:
		*d = NewASTContextDetection(env.NodeType, env.Query, env.Context)
	case DetectionLLM:
		*d = NewLLMDetection(env.Criteria)
	default:
		return fmt.Errorf("unknown detection kind %q", env.Type)
	}
	return nil
}
