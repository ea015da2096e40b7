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

// metaDescriptionMax bounds the meta description length in runes.
const metaDescriptionMax = 160

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Meta produces publication metadata for an approved draft: an AI-written
// meta description plus tags and slug derived from the topic.
// Per prd005-publishing R2.1-R2.4.
func (g *Generator) Meta(ctx context.Context, topic types.TopicSpec, draft types.DraftContent) (types.PostMeta, error) {
	prompt, err := renderMetaPrompt(draft)
	if err != nil {
		return types.PostMeta{}, err
	}
	text, err := g.complete(ctx, prompt)
	if err != nil {
		return types.PostMeta{}, fmt.Errorf("generating meta description: %w", err)
	}

	desc := clampDescription(stripFences(text))
	if desc == "" {
		return types.PostMeta{}, &types.TransientError{Op: "optimize", Err: errors.New("model returned an empty description")}
	}
	return types.PostMeta{
		MetaDescription: desc,
		Tags:            Tags(topic.Keywords),
		Slug:            Slugify(topic.Title),
	}, nil
}

// clampDescription collapses whitespace and trims the description to the
// length cap at a word boundary.
func clampDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= metaDescriptionMax {
		return s
	}
	cut := string(runes[:metaDescriptionMax])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// Slugify derives a URL slug from a title: lowercase alphanumeric runs
// joined by hyphens.
func Slugify(title string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// Tags normalizes topic keywords into platform tags: trimmed, lowercased,
// deduplicated, in keyword order.
func Tags(keywords []string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, k := range keywords {
		tag := strings.ToLower(strings.TrimSpace(k))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
