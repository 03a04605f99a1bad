// Package citywalls scrapes building records from the citywalls.ru street
// index and per-street listing pages.
package citywalls

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"buildings/internal/types"
)

// DefaultBaseURL is the citywalls.ru site root used to absolutize relative links.
const DefaultBaseURL = "https://www.citywalls.ru/"

// StreetLink is one entry of the street index page.
type StreetLink struct {
	Name string
	URL  string
}

// ParseStreetIndex extracts street links from the index page. Only anchors
// inside tables whose href points at a search-street page are considered.
func ParseStreetIndex(body []byte, baseURL string) ([]StreetLink, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var links []StreetLink
	var inTable int
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			inTable++
			defer func() { inTable-- }()
		}
		if inTable > 0 && n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if strings.Contains(href, "search-street") {
				links = append(links, StreetLink{
					Name: strings.TrimSpace(textContent(n)),
					URL:  absolutize(baseURL, href),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return links, nil
}

// ParseStreetPage extracts the building blocks (div.cssHouseHead) from one
// street listing page.
func ParseStreetPage(body []byte, street, baseURL string) ([]types.Building, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var buildings []types.Building
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "cssHouseHead") {
			buildings = append(buildings, parseHouse(n, street, baseURL))
			return // house blocks do not nest
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return buildings, nil
}

// parseHouse reads one building block.
func parseHouse(house *html.Node, street, baseURL string) types.Building {
	b := types.Building{Street: street, Comments: "0"}

	if h2 := findFirst(house, func(n *html.Node) bool { return n.Data == "h2" }); h2 != nil {
		b.Title = strings.TrimSpace(textContent(h2))
	}

	if photo := findFirst(house, func(n *html.Node) bool { return n.Data == "div" && hasClass(n, "photo") }); photo != nil {
		if img := findFirst(photo, func(n *html.Node) bool { return n.Data == "img" }); img != nil {
			if src := attr(img, "src"); src != "" {
				b.PhotoURL = absolutize(baseURL, src)
			}
		}
	}

	if addr := findFirst(house, func(n *html.Node) bool { return n.Data == "div" && hasClass(n, "address") }); addr != nil {
		b.Address = strings.TrimSpace(textContent(addr))
	}

	// The attribute table lists architect/year/style rows as item/value cells.
	if table := findFirst(house, func(n *html.Node) bool { return n.Data == "table" }); table != nil {
		for _, row := range findAll(table, func(n *html.Node) bool { return n.Data == "tr" }) {
			item := findFirst(row, func(n *html.Node) bool { return n.Data == "td" && hasClass(n, "item") })
			value := findFirst(row, func(n *html.Node) bool { return n.Data == "td" && hasClass(n, "value") })
			if item == nil || value == nil {
				continue
			}
			label := strings.TrimSpace(textContent(item))
			text := strings.TrimSpace(textContent(value))
			switch {
			case strings.Contains(label, "Архитекторы"):
				b.Architects = text
			case strings.Contains(label, "Год постройки"):
				b.YearBuilt = text
			case strings.Contains(label, "Стиль"):
				b.Style = text
			}
		}
	}

	if comm := findFirst(house, func(n *html.Node) bool { return n.Data == "a" && hasClass(n, "imb_comm") }); comm != nil {
		if text := strings.TrimSpace(textContent(comm)); text != "" {
			b.Comments = text
		}
	}

	if link := findFirst(house, func(n *html.Node) bool { return n.Data == "a" && attr(n, "href") != "" }); link != nil {
		b.PageURL = absolutize(baseURL, attr(link, "href"))
	}

	return b
}

// absolutize resolves href against base unless it is already absolute.
func absolutize(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if found != nil {
			return
		}
		if n != root && n.Type == html.ElementNode && pred(n) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)
	return found
}

func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n != root && n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return sb.String()
}
