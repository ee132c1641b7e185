package discord

import (
	"fmt"
	"strings"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/source"
)

// Embed constants shared by every reflection card.
const (
	ReflectionColor  = 10448383
	ReflectionFooter = "Daily Reflections, use `/reflections` to get today's daily reflection"

	noQuote      = "No Quote found"
	noReflection = "No Reflection found"
	unknownBook  = "UNKNOWN BOOK"
)

// Entry is the single shape the formatter consumes. Both cached rows and
// external records are converted to an Entry before formatting.
type Entry struct {
	Date       dates.Canonical
	Title      string
	Quote      string
	Reflection string
	Book       string
	Page       string // e.g. "p. 86"; empty when unknown
}

// FromStored adapts a cached row.
func FromStored(r *domain.Reflection) (Entry, error) {
	if r == nil {
		return Entry{}, apperr.New(apperr.KindInternal, "discord.FromStored", "nil reflection")
	}
	d, err := dates.Parse(r.DateString)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Date:       d,
		Title:      r.Title,
		Quote:      r.QuoteText,
		Reflection: r.Body,
	}
	if r.BookName != nil {
		e.Book = *r.BookName
	}
	if r.PageNumber != nil {
		e.Page = fmt.Sprintf("p. %d", *r.PageNumber)
	}
	return e, nil
}

// FromExternal adapts a record straight from the external API.
func FromExternal(rec *source.Record) (Entry, error) {
	if rec == nil {
		return Entry{}, apperr.New(apperr.KindInternal, "discord.FromExternal", "nil record")
	}
	d, err := dates.Parse(rec.Date)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Date:       d,
		Title:      rec.Title,
		Quote:      rec.Quote.Text,
		Reflection: rec.Comment,
		Book:       rec.Quote.BookName,
		Page:       rec.Quote.PageNumber,
	}, nil
}

// Format builds the reflection card for e.
func Format(e Entry) Embed {
	quote := orDefault(e.Quote, noQuote)
	reflection := orDefault(e.Reflection, noReflection)
	book := orDefault(e.Book, unknownBook)

	return NewEmbed(Embed{
		Title:       "Daily Reflections | " + e.Date.Pretty(),
		Description: "## " + e.Title,
		Color:       ReflectionColor,
		Fields: []Field{
			{Name: "Quote", Value: quote},
			{Name: "Reflection", Value: reflection},
			{Name: "Source", Value: SourceText(book, e.Page)},
		},
		Footer: &Footer{Text: ReflectionFooter},
	})
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
