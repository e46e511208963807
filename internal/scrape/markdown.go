package scrape

import (
	"regexp"
	"strings"

	"github.com/sells-group/gap-analysis/internal/model"
)

var (
	atxHeadingRe = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.+?)[ \t#]*$`)
	setextH1Re   = regexp.MustCompile(`^ {0,3}=+[ \t]*$`)
	setextH2Re   = regexp.MustCompile(`^ {0,3}-+[ \t]*$`)
	mdLinkRe     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
)

// MarkdownHeadings returns the heading outline of a markdown document in
// document order. Fenced code blocks are skipped.
func MarkdownHeadings(md string) []model.Heading {
	var (
		out     []model.Heading
		inFence bool
		prev    string
	)
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			prev = ""
			continue
		}
		if inFence {
			continue
		}
		if m := atxHeadingRe.FindStringSubmatch(line); m != nil {
			if text := headingText(m[2]); text != "" {
				out = append(out, model.Heading{Level: len(m[1]), Text: text})
			}
			prev = ""
			continue
		}
		if prev != "" && !strings.HasPrefix(prev, "- ") && !strings.HasPrefix(prev, "* ") {
			switch {
			case setextH1Re.MatchString(line):
				out = append(out, model.Heading{Level: 1, Text: headingText(prev)})
				prev = ""
				continue
			case setextH2Re.MatchString(line):
				out = append(out, model.Heading{Level: 2, Text: headingText(prev)})
				prev = ""
				continue
			}
		}
		prev = trimmed
	}
	return out
}

func headingText(s string) string {
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
