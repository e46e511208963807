package scrape

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/gap-analysis/internal/model"
)

// boilerplate is removed before text extraction.
const boilerplate = "script, style, noscript, template, svg, iframe, nav, footer, header nav, form, [aria-hidden=true]"

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Main: true, atom.Aside: true, atom.Li: true, atom.Ul: true,
	atom.Ol: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Table: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Blockquote: true, atom.Pre: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Figcaption: true,
}

// parseHTML extracts title, readable text and the heading outline from an
// HTML document.
func parseHTML(r io.Reader) (title, text string, headings []model.Heading, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", nil, eris.Wrap(err, "scrape: parse html")
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(boilerplate).Remove()

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		t := strings.Join(strings.Fields(s.Text()), " ")
		if t == "" {
			return
		}
		headings = append(headings, model.Heading{
			Level: headingLevels[s.Nodes[0].DataAtom],
			Text:  t,
		})
	})

	root := doc.Find("main").First()
	if root.Length() == 0 || len(strings.TrimSpace(root.Text())) < 200 {
		root = doc.Find("body")
	}
	var b strings.Builder
	for _, n := range root.Nodes {
		writeText(&b, n)
	}
	return title, collapseLines(b.String()), headings, nil
}

// writeText appends the text under n, breaking lines at block elements so
// sentence boundaries survive.
func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if blockAtoms[n.DataAtom] {
			b.WriteByte('\n')
			defer b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
