// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/draft-engine/pkg/types"
)

var outlinePromptTmpl = template.Must(template.New("outline").Parse(`You are planning a blog post.

Title: {{.Title}}
{{- if .Description}}
Angle: {{.Description}}
{{- end}}
{{- if .Audience}}
Audience: {{.Audience}}
{{- end}}
{{- if .Keywords}}
Keywords: {{.Keywords}}
{{- end}}

{{if .Context}}Source material. Each excerpt carries a citation label in brackets:

{{.Context}}

Plan 4 to 7 sections that cover the title using this material. For each
section, list the labels of the excerpts it should draw on. Use only
labels shown above.{{else}}No source material is available. Plan 4 to 7
sections from the title alone and leave source_labels empty.{{end}}

Respond with only a JSON object in this exact format, no other text:

{
  "sections": [
    {
      "heading": "Why connection pools leak",
      "estimated_words": 250,
      "source_labels": ["S1", "S3"]
    }
  ]
}`))

var draftPromptTmpl = template.Must(template.New("draft").Parse(`You are writing a blog post in Markdown.

Title: {{.Title}}
{{- if .Audience}}
Audience: {{.Audience}}
{{- end}}
{{- if .Tone}}
Tone: {{.Tone}}
{{- end}}

Outline:
{{.Outline}}
{{if .Context}}
Source material. Each excerpt carries a citation label in brackets:

{{.Context}}
{{end}}
{{- if .Feedback}}
A reviewer flagged these problems with the previous draft. Fix every one
of them in this revision:

{{.Feedback}}
{{end}}
Rules:
- Start with "# {{.Title}}" and render each outline section under a "## "
  heading, in outline order, using the exact outline headings.
- Keep each section near its estimated word count.
- When a sentence draws on the source material, cite the excerpt's label
  inline at the end of the sentence, e.g. "reuse halves tail latency [S2]".
- Cite only labels listed above. Never invent labels.
- Respond with only the Markdown document, no preamble and no code fence.`))

var metaPromptTmpl = template.Must(template.New("meta").Parse(`Write a meta description for the blog post below: plain text,
one or two sentences, 150 to 160 characters total, no quotes and no
Markdown.

{{.Body}}

Respond with only the description text.`))

type outlinePromptData struct {
	Title       string
	Description string
	Audience    string
	Keywords    string
	Context     string
}

type draftPromptData struct {
	Title    string
	Audience string
	Tone     string
	Outline  string
	Context  string
	Feedback string
}

func renderOutlinePrompt(topic types.TopicSpec, rctx types.RetrievalContext) (string, error) {
	data := outlinePromptData{
		Title:       topic.Title,
		Description: topic.Description,
		Audience:    topic.Audience,
		Keywords:    strings.Join(topic.Keywords, ", "),
		Context:     formatContext(rctx),
	}
	var b strings.Builder
	if err := outlinePromptTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering outline prompt: %w", err)
	}
	return b.String(), nil
}

func renderDraftPrompt(topic types.TopicSpec, outline types.Outline, rctx types.RetrievalContext, previous *types.CritiqueResult) (string, error) {
	data := draftPromptData{
		Title:    topic.Title,
		Audience: topic.Audience,
		Tone:     topic.Tone,
		Outline:  formatOutline(outline),
		Context:  formatContext(rctx),
	}
	if previous != nil {
		data.Feedback = formatFeedback(*previous)
	}
	var b strings.Builder
	if err := draftPromptTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering draft prompt: %w", err)
	}
	return b.String(), nil
}

func renderMetaPrompt(draft types.DraftContent) (string, error) {
	var b strings.Builder
	if err := metaPromptTmpl.Execute(&b, struct{ Body string }{Body: draft.Body}); err != nil {
		return "", fmt.Errorf("rendering meta prompt: %w", err)
	}
	return b.String(), nil
}

// formatContext renders the retrieval context as labeled excerpts.
func formatContext(rctx types.RetrievalContext) string {
	var b strings.Builder
	for _, c := range rctx.Chunks {
		fmt.Fprintf(&b, "[%s] (from %s)\n%s\n\n", c.Label, c.DocumentPath, strings.TrimSpace(c.Content))
	}
	return strings.TrimSpace(b.String())
}

// formatOutline renders an outline as a numbered plan.
func formatOutline(o types.Outline) string {
	var b strings.Builder
	for i, s := range o.Sections {
		fmt.Fprintf(&b, "%d. %s (~%d words", i+1, s.Heading, s.EstimatedWords)
		if len(s.SourceLabels) > 0 {
			fmt.Fprintf(&b, "; sources %s", strings.Join(s.SourceLabels, ", "))
		}
		b.WriteString(")\n")
	}
	return strings.TrimSpace(b.String())
}

// formatFeedback renders a critique as a fix list for the revision prompt.
func formatFeedback(cr types.CritiqueResult) string {
	var b strings.Builder
	for _, issue := range cr.Issues {
		fmt.Fprintf(&b, "- %s at %s", issue.Kind, issue.Location)
		if issue.Detail != "" {
			fmt.Fprintf(&b, ": %s", issue.Detail)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// stripFences removes a Markdown code fence wrapping the whole response,
// which models sometimes add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
