package discord

import (
	"fmt"

	"github.com/tbourn/daily-reflections-bot/internal/utils"
)

// BigBook is the only book with an online page mirror.
const BigBook = "ALCOHOLICS ANONYMOUS"

const bigBookPageURL = "https://anonpress.org/bb/Page_%d.htm"

// PageURL returns the online page link for book at pageText. ok is false
// when pageText has no positive page number or the book has no mirror.
func PageURL(book, pageText string) (url string, ok bool) {
	n, ok := utils.FirstNumber(pageText)
	if !ok || n <= 0 || book != BigBook {
		return "", false
	}
	return fmt.Sprintf(bigBookPageURL, n), true
}

// SourceText renders the Source field: a markdown link when PageURL
// resolves, otherwise the plain "book, page" text.
func SourceText(book, pageText string) string {
	if url, ok := PageURL(book, pageText); ok {
		return fmt.Sprintf("[%s, %s](%s)", book, pageText, url)
	}
	if pageText == "" {
		return book
	}
	return book + ", " + pageText
}
