package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// visibleText returns the whitespace-collapsed text of an HTML fragment,
// ignoring scripts and styles.
func visibleText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
