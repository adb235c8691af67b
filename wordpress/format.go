package wordpress

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/bidi"
)

// DefaultTextDirection is assumed until a line gives a strong directional
// hint. The migrated group wrote mostly Hebrew.
const DefaultTextDirection = "rtl"

const attachedFilesLabel = "קבצים מצורפים:"

// GroupTimezone is the timezone post and comment dates are rendered in on
// the destination.
var GroupTimezone = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Jerusalem"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 2*60*60)
}()

func divWithDirection(content, direction string) string {
	var style string
	switch direction {
	case "ltr":
		style = "direction:ltr;text-align:left;"
	case "rtl":
		style = "direction:rtl;text-align:right;"
	}
	return fmt.Sprintf("<div style=%q>%s</div>", style, html.EscapeString(content))
}

// lineDirection classifies a line by the bidi class of its first strong
// character; "" means the line gives no hint and the previous direction
// carries over.
func lineDirection(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	properties, _ := bidi.LookupString(trimmed)
	switch properties.Class() {
	case bidi.L:
		return "ltr"
	case bidi.R, bidi.AL:
		return "rtl"
	}
	return ""
}

// FormatMessage converts source-style plain text into destination markup:
// one div per line with an explicit direction, blank lines as breaks.
func FormatMessage(text string) string {
	direction := DefaultTextDirection
	var divs []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			divs = append(divs, "<br />")
			continue
		}
		if d := lineDirection(line); d != "" {
			direction = d
		}
		divs = append(divs, divWithDirection(line, direction))
	}
	return strings.Join(divs, "\n")
}

// ExtractTitle builds a post title from the message: the leading word is
// skipped when it is a bare link, then words accumulate until the title
// would pass 50 characters.
func ExtractTitle(message string) string {
	words := strings.Fields(message)
	if len(words) > 0 &&
		(strings.HasPrefix(words[0], "http://") || strings.HasPrefix(words[0], "https://")) {
		words = words[1:]
	}
	if len(words) == 0 {
		return "(untitled)"
	}
	title := words[0]
	for _, word := range words[1:] {
		extended := title + " " + word
		if len(extended) > 50 {
			title += "..."
			break
		}
		title = extended
	}
	return title
}

// FormatPostContent renders a root node's body: pictures first, then the
// formatted message, then the list of attached files.
func FormatPostContent(message string, pictures []string, files []FileLink) string {
	content := FormatMessage(message)
	if len(pictures) > 0 {
		var images strings.Builder
		for _, u := range pictures {
			fmt.Fprintf(&images, "<img src=%q />\n", u)
		}
		content = images.String() + "<br />\n" + content
	}
	if len(files) > 0 {
		var links strings.Builder
		for _, f := range files {
			fmt.Fprintf(&links, "<div><a href=%q>%s</a></div>\n", f.URL, html.EscapeString(f.Title))
		}
		content += "<br />\n<div>" + attachedFilesLabel + "</div>\n" + links.String()
	}
	return content
}

// FileLink is a titled file-upload reference rendered as a download link.
type FileLink struct {
	Title string
	URL   string
}

// FormatAuthorsPage renders the per-author post counts one line per author,
// most prolific first, ties broken by name.
func FormatAuthorsPage(counts []AuthorCount) string {
	sorted := make([]AuthorCount, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Posts != sorted[j].Posts {
			return sorted[i].Posts > sorted[j].Posts
		}
		return sorted[i].Name < sorted[j].Name
	})
	lines := make([]string, len(sorted))
	for i, c := range sorted {
		lines[i] = fmt.Sprintf("%s: %d", c.Name, c.Posts)
	}
	return FormatMessage(strings.Join(lines, "\n"))
}
