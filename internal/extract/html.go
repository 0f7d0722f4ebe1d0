package extract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// fromHTML strips markup and feeds the visible text through the line-oriented
// extractor. Block-level elements start a new line so list items and
// paragraphs become separate candidates.
func fromHTML(data []byte) ([]Candidate, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	collectText(doc, &b)
	return fromText(b.String()), nil
}

var blockElements = map[string]bool{
	"p": true, "li": true, "div": true, "br": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "head":
			return
		}
		if blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(strings.TrimSpace(n.Data))
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
