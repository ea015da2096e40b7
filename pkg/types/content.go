// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// TopicSpec is a run's immutable input: what to write about and for whom.
// Loaded from a topic YAML file. Per prd003-pipeline R1.1.
type TopicSpec struct {
	// Title is the working title of the piece.
	Title string `json:"title" yaml:"title"`

	// Description explains the angle and intended takeaways.
	Description string `json:"description" yaml:"description"`

	// Keywords lists topic keywords used for research queries and tags.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Audience names the target readership (e.g. "backend engineers").
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty"`

	// Tone sets the writing register (e.g. "practical", "conversational").
	Tone string `json:"tone,omitempty" yaml:"tone,omitempty"`
}

// Validate checks that the spec carries the minimum fields a run needs.
func (t TopicSpec) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &FatalError{Op: "topic", Err: errEmptyTitle}
	}
	return nil
}

// OutlineSection describes one planned section of the piece and the
// retrieval chunks it is grounded in. Per prd003-pipeline R2.1-R2.3.
type OutlineSection struct {
	// Heading is the section heading.
	Heading string `json:"heading" yaml:"heading"`

	// EstimatedWords is the planned section length.
	EstimatedWords int `json:"estimated_words" yaml:"estimated_words"`

	// SourceLabels lists the citation labels ("S1", ...) from the
	// RetrievalContext that this section draws on. May be empty for
	// sections that need no grounding (e.g. an introduction).
	SourceLabels []string `json:"source_labels" yaml:"source_labels"`
}

// Outline holds the planned structure of the piece in order.
// Per prd003-pipeline R2.1.
type Outline struct {
	// Sections lists the planned sections in order.
	Sections []OutlineSection `json:"sections" yaml:"sections"`
}

// IsEmpty reports whether the outline has no sections.
func (o Outline) IsEmpty() bool {
	return len(o.Sections) == 0
}

// Headings returns the section headings in order.
func (o Outline) Headings() []string {
	hs := make([]string, len(o.Sections))
	for i, s := range o.Sections {
		hs[i] = s.Heading
	}
	return hs
}

// SectionAttribution records which sources one drafted section actually
// cites, inherited from the outline and verified during critique.
type SectionAttribution struct {
	// Heading is the section heading as it appears in the draft.
	Heading string `json:"heading" yaml:"heading"`

	// SourceLabels lists the citation labels the section draws on.
	SourceLabels []string `json:"source_labels" yaml:"source_labels"`
}

// DraftContent is one complete draft of the piece: the full Markdown body
// plus per-section source attributions. Per prd003-pipeline R3.1-R3.2.
type DraftContent struct {
	// Body is the full Markdown text, with "## " section headings and
	// inline citation markers like [S1].
	Body string `json:"body" yaml:"body"`

	// Attributions maps each drafted section to its sources.
	Attributions []SectionAttribution `json:"attributions" yaml:"attributions"`
}

// IsEmpty reports whether no draft has been produced yet.
func (d DraftContent) IsEmpty() bool {
	return strings.TrimSpace(d.Body) == ""
}

// WordCount returns the whitespace-delimited word count of the body.
func (d DraftContent) WordCount() int {
	return len(strings.Fields(d.Body))
}

// PostMeta holds publication metadata produced by the optimize stage.
// Per prd005-publishing R2.1-R2.4.
type PostMeta struct {
	// MetaDescription is the summary for search snippets, 150-160 chars.
	MetaDescription string `json:"meta_description" yaml:"meta_description"`

	// Tags are the post tags, derived from the topic keywords.
	Tags []string `json:"tags" yaml:"tags"`

	// Slug is the URL slug derived from the title.
	Slug string `json:"slug" yaml:"slug"`
}
