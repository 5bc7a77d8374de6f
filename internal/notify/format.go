package notify

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	titleKey = "%d Photo Memories"
	bodyKey  = "You have %d photo memories for today"
)

var (
	supported = []language.Tag{language.English, language.German}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()

	defaultFormatter = NewFormatter("en")
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	set := func(tag language.Tag, key string, one, other string) {
		// Only fails on malformed messages, which these are not
		_ = b.Set(tag, key, plural.Selectf(1, "%d", "one", one, "other", other))
	}

	set(language.English, titleKey, "%d Photo Memory", "%d Photo Memories")
	set(language.English, bodyKey, "You have %d photo memory for today", "You have %d photo memories for today")
	set(language.German, titleKey, "%d Foto-Erinnerung", "%d Foto-Erinnerungen")
	set(language.German, bodyKey, "Du hast heute %d Foto-Erinnerung", "Du hast heute %d Foto-Erinnerungen")

	return b
}

// Formatter renders reminder titles and bodies for one locale.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter picks the closest supported language to locale, falling back
// to English.
func NewFormatter(locale string) *Formatter {
	_, idx := language.MatchStrings(matcher, locale)
	tag := supported[idx]
	return &Formatter{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(messages)),
	}
}

func (f *Formatter) Language() language.Tag {
	return f.tag
}

func (f *Formatter) Title(count int) string {
	return f.printer.Sprintf(titleKey, count)
}

func (f *Formatter) Body(count int) string {
	return f.printer.Sprintf(bodyKey, count)
}
