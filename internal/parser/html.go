package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ToPlainText strips all markup from an email body and returns plain text
// with line breaks between text nodes, so list/table structure survives as
// separate lines for the extraction prompt. Script and style contents are
// dropped. On unparseable input the original string is returned unchanged.
func ToPlainText(markup string) string {
	if !strings.ContainsAny(markup, "<>") {
		return strings.TrimSpace(markup)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}
	doc.Find("script, style, head").Remove()

	var parts []string
	for _, root := range doc.Selection.Nodes {
		collectText(root, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
