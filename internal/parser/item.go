// Package parser normalizes raw email content: splitting free-form product
// descriptions into structured attributes and flattening HTML bodies into
// plain text for the extraction prompts.
package parser

import (
	"regexp"
	"strings"
)

// Recognized description layouts.
var (
	inlineLayout = regexp.MustCompile(`^(.*?)\.\s*([^,]+),\s*(.+)$`)
	colorLabel   = regexp.MustCompile(`(?i)Color:\s*(.+)`)
	sizeLabel    = regexp.MustCompile(`(?i)Size:\s*(.+)`)
)

// ParseItemDetails extracts (base description, color, size) from a raw product
// description string. Two layouts are recognized:
//
//  1. "Product Name. Color, Size", split on the first period and first comma.
//  2. Multi-line with labeled "Color: xyz" / "Size: abc" tokens anywhere after
//     the first line, matched case-insensitively.
//
// Unmatched attributes come back as empty strings, never as an error.
func ParseItemDetails(description string) (base, color, size string) {
	if description == "" {
		return "", "", ""
	}

	if m := inlineLayout.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), strings.TrimSpace(m[3])
	}

	lines := strings.SplitN(description, "\n", 2)
	base = strings.TrimSpace(lines[0])
	if m := colorLabel.FindStringSubmatch(description); m != nil {
		color = strings.TrimSpace(m[1])
	}
	if m := sizeLabel.FindStringSubmatch(description); m != nil {
		size = strings.TrimSpace(m[1])
	}
	return base, color, size
}
