// utils/markdown.go - Cleanup for LLM-written markdown reports
package utils

import (
	"regexp"
	"strings"
)

var (
	fencePrefixPattern = regexp.MustCompile("^```[a-zA-Z]*\\s*\n")
	blankRunPattern    = regexp.MustCompile(`\n{3,}`)
	bulletPattern      = regexp.MustCompile(`(?m)^(\s*)[•▪◦*]\s+`)
	trailingWSPattern  = regexp.MustCompile(`(?m)[ \t]+$`)
	boldHeaderPattern  = regexp.MustCompile(`(?m)^\*\*([^*\n]+):?\*\*\s*$`)
)

// CleanMarkdown normalizes model output into presentable markdown: strips a
// wrapping code fence, drops a leading H1 that duplicates the given title,
// converts unicode bullets and bold-line pseudo-headers, collapses blank
// runs, and trims trailing whitespace.
func CleanMarkdown(content, title string) string {
	content = strings.TrimSpace(content)

	// Models sometimes wrap the whole document in ```markdown fences.
	if fencePrefixPattern.MatchString(content) && strings.HasSuffix(content, "```") {
		content = fencePrefixPattern.ReplaceAllString(content, "")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	// A leading H1 repeating the title just doubles the page header.
	if title != "" {
		lines := strings.SplitN(content, "\n", 2)
		first := strings.TrimSpace(strings.TrimLeft(lines[0], "# "))
		if strings.EqualFold(first, strings.TrimSpace(title)) && strings.HasPrefix(lines[0], "#") {
			if len(lines) == 2 {
				content = strings.TrimSpace(lines[1])
			} else {
				content = ""
			}
		}
	}

	content = bulletPattern.ReplaceAllString(content, "${1}- ")
	content = boldHeaderPattern.ReplaceAllString(content, "### $1")
	content = trailingWSPattern.ReplaceAllString(content, "")
	content = blankRunPattern.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
