// ABOUTME: Splits plain text into spans played one request at a time
// ABOUTME: Paragraphs separated by blank lines become spans
package narrator

import "strings"

// SplitSpans returns the non-empty paragraphs of text with inner whitespace
// collapsed. Paragraphs are separated by one or more blank lines.
func SplitSpans(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var spans []string
	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		span := strings.Join(strings.Fields(strings.Join(para, " ")), " ")
		if span != "" {
			spans = append(spans, span)
		}
		para = para[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()

	return spans
}

// CountChars returns the number of characters across spans, counting one
// separator between spans
func CountChars(spans []string) int {
	total := 0
	for i, s := range spans {
		if i > 0 {
			total++
		}
		total += len([]rune(s))
	}
	return total
}
