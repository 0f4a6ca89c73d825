// Package landing turns raw generator output into a standalone HTML document.
package landing

import (
	"regexp"
	"strings"
)

var (
	fenceRe    = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*$\n?|```")
	documentRe = regexp.MustCompile(`(?is)<html[\s>].*?</html\s*>`)
)

const shellHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Landing Page</title>
<script src="https://cdn.tailwindcss.com"></script>
<link rel="preconnect" href="https://fonts.googleapis.com">
<link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;600;800&display=swap" rel="stylesheet">
<style>body{font-family:'Inter',system-ui,sans-serif;margin:0}</style>
</head>
<body>
`

const shellTail = `
</body>
</html>
`

// Normalize returns a complete HTML document built from raw, or "" when raw
// carries no markup at all.
//
// Code fences are removed first. If one or more <html>…</html> documents are
// present the largest one wins and is prefixed with a doctype. Otherwise
// the span from the first '<' to the last '>' is treated as a fragment and
// wrapped in a document shell with default styling.
func Normalize(raw string) string {
	s := strings.TrimSpace(StripFences(raw))
	if s == "" {
		return ""
	}

	if doc := largestDocument(s); doc != "" {
		return "<!DOCTYPE html>\n" + doc
	}

	start := strings.Index(s, "<")
	end := strings.LastIndex(s, ">")
	if start < 0 || end <= start {
		return ""
	}
	return shellHead + s[start:end+1] + shellTail
}

// StripFences removes markdown code fence markers, keeping their contents.
func StripFences(raw string) string {
	return fenceRe.ReplaceAllString(raw, "")
}

func largestDocument(s string) string {
	var best string
	for _, m := range documentRe.FindAllString(s, -1) {
		if len(m) > len(best) {
			best = m
		}
	}
	return best
}
