// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/draft-engine/pkg/types"
)

var labelPattern = regexp.MustCompile(`\[(S\d+)\]`)

// Draft writes the piece from the outline and its source material. When a
// previous critique is supplied, its issues go into the prompt as a fix
// list and the model rewrites the draft. Per prd003-pipeline R3.1-R3.3.
func (g *Generator) Draft(ctx context.Context, topic types.TopicSpec, outline types.Outline, rctx types.RetrievalContext, previous *types.CritiqueResult) (types.DraftContent, error) {
	prompt, err := renderDraftPrompt(topic, outline, rctx, previous)
	if err != nil {
		return types.DraftContent{}, err
	}
	text, err := g.complete(ctx, prompt)
	if err != nil {
		return types.DraftContent{}, fmt.Errorf("writing draft: %w", err)
	}

	body := strings.TrimSpace(text)
	if body == "" {
		return types.DraftContent{}, &types.TransientError{Op: "write", Err: errors.New("model returned an empty draft")}
	}
	return types.DraftContent{
		Body:         body,
		Attributions: ExtractAttributions(body),
	}, nil
}

// ExtractAttributions maps each "## " section of a draft body to the
// citation labels it cites, in first-use order. Text before the first
// section heading is not attributed.
func ExtractAttributions(body string) []types.SectionAttribution {
	var attrs []types.SectionAttribution
	var heading string
	var labels []string
	seen := make(map[string]bool)

	flush := func() {
		if heading != "" {
			attrs = append(attrs, types.SectionAttribution{Heading: heading, SourceLabels: labels})
		}
		labels = nil
		seen = make(map[string]bool)
	}

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			heading = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			continue
		}
		for _, m := range labelPattern.FindAllStringSubmatch(line, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				labels = append(labels, m[1])
			}
		}
	}
	flush()
	return attrs
}
