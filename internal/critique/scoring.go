// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package critique

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// redundantPairThreshold is the pairwise token overlap above which two
// sections are flagged as redundant.
const redundantPairThreshold = 0.5

var citationPattern = regexp.MustCompile(`\[(S\d+)\]`)

// section is one "## " block of a draft body.
type section struct {
	heading string
	body    string
}

// splitSections cuts a draft body into its "## " sections. Text before
// the first section heading (the title line and any intro) is dropped;
// it belongs to no outline section and no measure scores it.
func splitSections(body string) []section {
	var sections []section
	var current *section

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "## ") {
			sections = append(sections, section{heading: strings.TrimSpace(strings.TrimPrefix(line, "## "))})
			current = &sections[len(sections)-1]
			continue
		}
		if current != nil {
			current.body += line + "\n"
		}
	}

	for i := range sections {
		sections[i].body = strings.TrimSpace(sections[i].body)
	}
	return sections
}

// groundedness measures citation coverage: the fraction of paragraphs in
// grounded sections (outline sections with source labels) that cite at
// least one label present in the retrieval context. Paragraphs without a
// citation are flagged, as are citations of labels the context does not
// contain. A draft with no grounded sections scores 1: there is nothing
// to trace.
func groundedness(sections []section, outline types.Outline, rctx types.RetrievalContext) (float64, []types.CritiqueIssue) {
	grounded := make(map[string]bool)
	for _, s := range outline.Sections {
		if len(s.SourceLabels) > 0 {
			grounded[normalizeHeading(s.Heading)] = true
		}
	}

	var issues []types.CritiqueIssue
	var total, cited int

	for _, sec := range sections {
		if !grounded[normalizeHeading(sec.heading)] {
			continue
		}
		for i, para := range paragraphs(sec.body) {
			total++
			known, unknown := citations(para, rctx)
			for _, label := range unknown {
				issues = append(issues, types.CritiqueIssue{
					Kind:     types.IssueUnknownCitation,
					Location: fmt.Sprintf("section %q, paragraph %d", sec.heading, i+1),
					Detail:   fmt.Sprintf("label %s is not in the retrieval context", label),
				})
			}
			if known > 0 {
				cited++
				continue
			}
			issues = append(issues, types.CritiqueIssue{
				Kind:     types.IssueUnsupportedClaim,
				Location: fmt.Sprintf("section %q, paragraph %d", sec.heading, i+1),
				Detail:   "no citation into the retrieval context",
			})
		}
	}

	if total == 0 {
		return 1, issues
	}
	return float64(cited) / float64(total), issues
}

// redundancy measures cross-section distinctness: 1 minus the highest
// pairwise token overlap (Jaccard) between section bodies. Pairs above
// redundantPairThreshold are flagged.
func redundancy(sections []section) (float64, []types.CritiqueIssue) {
	if len(sections) < 2 {
		return 1, nil
	}

	sets := make([]map[string]bool, len(sections))
	for i, sec := range sections {
		sets[i] = tokenSet(sec.body)
	}

	var issues []types.CritiqueIssue
	var worst float64
	for i := 0; i < len(sections); i++ {
		for j := i + 1; j < len(sections); j++ {
			overlap := jaccard(sets[i], sets[j])
			if overlap > worst {
				worst = overlap
			}
			if overlap > redundantPairThreshold {
				issues = append(issues, types.CritiqueIssue{
					Kind:     types.IssueRedundantSection,
					Location: fmt.Sprintf("sections %q and %q", sections[i].heading, sections[j].heading),
					Detail:   fmt.Sprintf("token overlap %.0f%%", overlap*100),
				})
			}
		}
	}

	return 1 - worst, issues
}

// structure measures outline completeness: the fraction of outline
// sections present in the draft with a non-empty body. Missing and empty
// sections are flagged. An empty outline scores 1.
func structure(sections []section, outline types.Outline) (float64, []types.CritiqueIssue) {
	if len(outline.Sections) == 0 {
		return 1, nil
	}

	bodies := make(map[string]string, len(sections))
	for _, sec := range sections {
		bodies[normalizeHeading(sec.heading)] = sec.body
	}

	var issues []types.CritiqueIssue
	complete := 0
	for _, s := range outline.Sections {
		body, present := bodies[normalizeHeading(s.Heading)]
		switch {
		case !present:
			issues = append(issues, types.CritiqueIssue{
				Kind:     types.IssueMissingSection,
				Location: fmt.Sprintf("section %q", s.Heading),
				Detail:   "outline section absent from the draft",
			})
		case body == "":
			issues = append(issues, types.CritiqueIssue{
				Kind:     types.IssueEmptySection,
				Location: fmt.Sprintf("section %q", s.Heading),
				Detail:   "heading present with no content",
			})
		default:
			complete++
		}
	}

	return float64(complete) / float64(len(outline.Sections)), issues
}

// citations counts the valid citation labels in text and returns the
// unknown ones, deduplicated in first-use order.
func citations(text string, rctx types.RetrievalContext) (known int, unknown []string) {
	seen := make(map[string]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		label := m[1]
		if seen[label] {
			continue
		}
		seen[label] = true
		if rctx.ByLabel(label) != nil {
			known++
		} else {
			unknown = append(unknown, label)
		}
	}
	return known, unknown
}

// paragraphs splits text on blank lines, dropping empty blocks.
func paragraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			out = append(out, block)
		}
	}
	return out
}

// tokenSet lowercases text and collects its distinct words of four or
// more letters, dropping citation markers and punctuation. Short words
// are mostly function words and would inflate overlap between any two
// sections of prose.
func tokenSet(text string) map[string]bool {
	text = citationPattern.ReplaceAllString(text, "")
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'`()[]{}<>*#-")
		if len(tok) >= 4 {
			set[tok] = true
		}
	}
	return set
}

// jaccard returns |a ∩ b| / |a ∪ b|, or 0 for two empty sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func normalizeHeading(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
