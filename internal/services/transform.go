package services

import (
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/source"
	"github.com/tbourn/daily-reflections-bot/internal/utils"
)

// ToReflection converts an external record into the stored shape. The key
// comes from the record's own date; requested is used only when that date
// cannot be parsed. The page number is the first digit run of the page text
// and the book name is nil when empty.
func ToReflection(rec *source.Record, requested dates.Canonical) *domain.Reflection {
	d, err := dates.Parse(rec.Date)
	if err != nil {
		d = requested
	}
	r := &domain.Reflection{
		DateString: d.Display,
		MonthDay:   d.MonthDay,
		Title:      rec.Title,
		Body:       utils.RemoveLineBreaks(rec.Comment),
		QuoteText:  utils.RemoveLineBreaks(rec.Quote.Text),
	}
	if n, ok := utils.FirstNumber(rec.Quote.PageNumber); ok {
		r.PageNumber = &n
	}
	if rec.Quote.BookName != "" {
		book := rec.Quote.BookName
		r.BookName = &book
	}
	return r
}
