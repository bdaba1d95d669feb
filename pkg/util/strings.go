package util

import "strings"

// ChunkText splits s into pieces of at most max bytes, preferring line
// boundaries. A single line longer than max is hard-split.
func ChunkText(s string, max int) []string {
	if max <= 0 || len(s) <= max {
		return []string{s}
	}
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(s, "\n") {
		for len(line) > max {
			flush()
			chunks = append(chunks, line[:max])
			line = line[max:]
		}
		if cur.Len()+len(line) > max {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return chunks
}
