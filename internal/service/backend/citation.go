package backend

import (
	"fmt"
	"strings"
)

// Citation ties a marker span in the reply text to the source it cites.
// Source is empty for annotations that have nothing to list, e.g. generated file paths.
type Citation struct {
	Marker string
	Source string
}

// FormatCitations replaces each citation marker with its index, [0], [1], … in order,
// and appends one "[i] source" line per cited source in that same order.
// Duplicate sources are listed once per citation.
func FormatCitations(text string, citations []Citation) string {
	if len(citations) == 0 {
		return text
	}

	refs := make([]string, 0, len(citations))
	for i, c := range citations {
		label := fmt.Sprintf("[%d]", i)
		if c.Marker != "" {
			text = strings.ReplaceAll(text, c.Marker, label)
		}
		if c.Source != "" {
			refs = append(refs, label+" "+c.Source)
		}
	}

	if len(refs) == 0 {
		return text
	}
	return text + "\n\n" + strings.Join(refs, "\n")
}
