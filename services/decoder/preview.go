package decoder

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/customeros/inboxsync/internal/utils"
)

const DefaultPreviewLength = 200

// HTMLToPlainText drops script and style elements and returns the body text.
func HTMLToPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	return doc.Find("body").Text(), nil
}

// Preview is the display text of a message body: tags stripped, whitespace
// collapsed and cut to n runes.
func Preview(body string, n int) string {
	if n <= 0 {
		n = DefaultPreviewLength
	}
	text, err := HTMLToPlainText(body)
	if err != nil {
		text = body
	}
	return utils.Truncate(strings.Join(strings.Fields(text), " "), n)
}
