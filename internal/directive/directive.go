// Package directive composes the analysis directive sent to the review
// capability for a single file. Compose is a pure function: identical inputs
// always produce an identical directive.
package directive

import (
	"fmt"
	"strings"

	"github.com/joescharf/rv/internal/catalog"
	"github.com/joescharf/rv/internal/models"
)

const baseInstructions = `You are an automated code reviewer. Analyze the file below and report
concrete, actionable issues. Only report problems you are confident about;
do not pad the result with speculative or stylistic nitpicks unless a
guideline section below asks for them. Every issue must reference a real
location in the file.`

const outputFormat = `## Output Format

Return ONLY a JSON array of issue objects, no markdown fencing or prose.
Each object has these fields:
- "line": starting line number (integer, 1-based)
- "column": starting column (integer, 0 if unknown)
- "endLine": ending line number (integer, 0 if single-line)
- "endColumn": ending column (integer, 0 if unknown)
- "severity": one of "error", "warning", "info"
- "category": one of "security", "architecture", "linting", "testing", "performance", "documentation"
- "ruleId": a short stable SCREAMING-KEBAB identifier for the kind of problem (e.g. "SQL-INJECTION")
- "title": concise issue title
- "description": what is wrong and why it matters
- "suggestion": how to fix it (empty string if obvious)
- "snippet": the offending code, verbatim (empty string if long)
- "fixedCode": corrected code if a small fix exists (empty string otherwise)

Return [] if the file has no issues worth reporting.`

// Compose builds the analysis directive for one file.
//
// Sections are concatenated in a fixed order: base instructions, language
// context, enabled guideline blocks, enabled dimension blocks, custom
// instructions, known active issues, output format. Enabled ids missing from
// the catalogs are silently skipped. The known-issues section is omitted
// entirely when knownIssues is empty.
func Compose(filePath string, cfg *models.ReviewConfig, knownIssues []*models.Issue) string {
	var b strings.Builder

	b.WriteString(baseInstructions)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Language context: %s\n", catalog.LanguageForFile(filePath))

	for _, id := range cfg.EnabledGuidelines {
		entry, ok := catalog.Guideline(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n## Guideline: %s\n\n%s", entry.Title, entry.Text)
	}

	for _, id := range cfg.EnabledDimensions {
		entry, ok := catalog.Dimension(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n## Focus: %s\n\n%s", entry.Title, entry.Text)
	}

	if custom := strings.TrimSpace(cfg.CustomInstructions); custom != "" {
		fmt.Fprintf(&b, "\n## Project Instructions\n\n%s\n", custom)
	}

	if len(knownIssues) > 0 {
		b.WriteString("\n## Known Issues\n\n")
		b.WriteString("The following issues are already tracked for this file. Do NOT report\nthem again:\n\n")
		for _, issue := range knownIssues {
			fmt.Fprintf(&b, "- line %d [%s] %s: %s\n", issue.Line, issue.RuleID, issue.Severity, issue.Title)
		}
	}

	b.WriteString("\n")
	b.WriteString(outputFormat)

	return b.String()
}
