package wordpress

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseFragment(t *testing.T, fragment string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.Equal(t, nil, err)
	return doc
}

func TestFormatMessageWrapsLinesInDirectionalDivs(t *testing.T) {
	doc := parseFragment(t, FormatMessage("hello world\n\nשלום עולם"))

	divs := doc.Find("div")
	require.Equal(t, 2, divs.Length())

	first := divs.Eq(0)
	require.Equal(t, "hello world", first.Text())
	style, _ := first.Attr("style")
	require.Contains(t, style, "direction:ltr")

	second := divs.Eq(1)
	style, _ = second.Attr("style")
	require.Contains(t, style, "direction:rtl")

	require.Equal(t, 1, doc.Find("br").Length())
}

func TestFormatMessageCarriesDirectionAcrossNeutralLines(t *testing.T) {
	doc := parseFragment(t, FormatMessage("hello\n123"))

	divs := doc.Find("div")
	require.Equal(t, 2, divs.Length())
	// The digits-only line has no strong direction and keeps the ltr of
	// the line before it.
	style, _ := divs.Eq(1).Attr("style")
	require.Contains(t, style, "direction:ltr")
}

func TestFormatMessageEscapesMarkup(t *testing.T) {
	formatted := FormatMessage("tags <b>must</b> not survive")
	doc := parseFragment(t, formatted)
	require.Equal(t, 0, doc.Find("b").Length())
	require.Contains(t, doc.Find("div").Text(), "<b>must</b>")
}

func TestExtractTitle(t *testing.T) {
	require.Equal(t, "A short message", ExtractTitle("A short message"))
	require.Equal(t, "(untitled)", ExtractTitle(""))

	// A leading bare link is not title material.
	require.Equal(t, "the real title", ExtractTitle("https://x.test/page the real title"))

	long := "one two three four five six seven eight nine ten eleven twelve"
	title := ExtractTitle(long)
	require.Equal(t, true, strings.HasSuffix(title, "..."))
	require.LessOrEqual(t, len(title), 54)
}

func TestFormatPostContentPrependsPictures(t *testing.T) {
	content := FormatPostContent("a post", []string{"https://cdn.test/a.jpg", "https://cdn.test/b.jpg"}, nil)
	doc := parseFragment(t, content)

	images := doc.Find("img")
	require.Equal(t, 2, images.Length())
	src, _ := images.Eq(0).Attr("src")
	require.Equal(t, "https://cdn.test/a.jpg", src)

	// Pictures come before the message markup.
	require.Less(t, strings.Index(content, "img"), strings.Index(content, "a post"))
}

func TestFormatPostContentAppendsFileLinks(t *testing.T) {
	content := FormatPostContent("a post", nil, []FileLink{
		{Title: "notes.pdf", URL: "https://cdn.test/notes.pdf"},
	})

	// Walk the markup the low-level way to find the anchor.
	doc, err := html.Parse(strings.NewReader(content))
	require.Equal(t, nil, err)

	var href, text string
	var findAnchor func(*html.Node)
	findAnchor = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = attr.Val
				}
			}
			if n.FirstChild != nil {
				text = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findAnchor(c)
		}
	}
	findAnchor(doc)

	require.Equal(t, "https://cdn.test/notes.pdf", href)
	require.Equal(t, "notes.pdf", text)
	require.Contains(t, content, attachedFilesLabel)
}
