package fetch

import (
	"strings"

	"golang.org/x/net/html"
)

// skipTags are subtrees removed before text extraction so downstream
// consumers see page content, not markup noise.
var skipTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
}

// extract parses an HTML document and returns its title and visible text,
// one line per text node.
func extract(rawHTML string) (title, text string, err error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", err
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return title, strings.Join(lines, "\n"), nil
}
