// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// defaultSectionWords fills in section length when the model omits it.
const defaultSectionWords = 200

// outlineResponse is the JSON shape the outline prompt asks for.
type outlineResponse struct {
	Sections []outlineResponseSection `json:"sections"`
}

type outlineResponseSection struct {
	Heading        string   `json:"heading"`
	EstimatedWords int      `json:"estimated_words"`
	SourceLabels   []string `json:"source_labels"`
}

// Outline plans the piece from the topic and its retrieval context. Every
// source label in the result is checked against the context; unknown
// labels fail the call. Per prd003-pipeline R2.1-R2.3.
func (g *Generator) Outline(ctx context.Context, topic types.TopicSpec, rctx types.RetrievalContext) (types.Outline, error) {
	prompt, err := renderOutlinePrompt(topic, rctx)
	if err != nil {
		return types.Outline{}, err
	}
	text, err := g.complete(ctx, prompt)
	if err != nil {
		return types.Outline{}, fmt.Errorf("generating outline: %w", err)
	}

	var resp outlineResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return types.Outline{}, &types.TransientError{Op: "outline", Err: fmt.Errorf("parsing response: %w", err)}
	}
	if len(resp.Sections) == 0 {
		return types.Outline{}, &types.TransientError{Op: "outline", Err: errors.New("response contains no sections")}
	}

	sections, problems := convertSections(resp.Sections, rctx)
	if len(problems) > 0 {
		return types.Outline{}, fmt.Errorf("outline validation: %s", strings.Join(problems, "; "))
	}
	return types.Outline{Sections: sections}, nil
}

// convertSections validates the raw outline sections, returning the
// converted sections and the list of validation problems found.
func convertSections(raw []outlineResponseSection, rctx types.RetrievalContext) ([]types.OutlineSection, []string) {
	var sections []types.OutlineSection
	var problems []string
	for i, s := range raw {
		heading := strings.TrimSpace(s.Heading)
		if heading == "" {
			problems = append(problems, fmt.Sprintf("section %d: empty heading", i+1))
			continue
		}
		var labels []string
		for _, label := range s.SourceLabels {
			if rctx.ByLabel(label) == nil {
				problems = append(problems, fmt.Sprintf("section %q: unknown source label %q", heading, label))
				continue
			}
			labels = append(labels, label)
		}
		words := s.EstimatedWords
		if words <= 0 {
			words = defaultSectionWords
		}
		sections = append(sections, types.OutlineSection{
			Heading:        heading,
			EstimatedWords: words,
			SourceLabels:   labels,
		})
	}
	return sections, problems
}
