package alert

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/kilianp07/cad/core/model"
)

const panicRed = 0xE53E3E

const (
	msgPanicTitle       = "panic.title"
	msgPanicDescription = "panic.description"
	msgFieldCallsign    = "field.callsign"
	msgFieldDepartment  = "field.department"
	msgFieldKind        = "field.kind"
)

var supported = []language.Tag{language.English, language.French, language.German}

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		_ = b.SetString(tag, key, msg)
	}
	set(language.English, msgPanicTitle, "Panic button pressed")
	set(language.English, msgPanicDescription, "Unit %s has activated their panic button.")
	set(language.English, msgFieldCallsign, "Callsign")
	set(language.English, msgFieldDepartment, "Department")
	set(language.English, msgFieldKind, "Unit type")

	set(language.French, msgPanicTitle, "Bouton panique activé")
	set(language.French, msgPanicDescription, "L'unité %s a activé son bouton panique.")
	set(language.French, msgFieldCallsign, "Indicatif")
	set(language.French, msgFieldDepartment, "Service")
	set(language.French, msgFieldKind, "Type d'unité")

	set(language.German, msgPanicTitle, "Panikknopf gedrückt")
	set(language.German, msgPanicDescription, "Einheit %s hat den Panikknopf ausgelöst.")
	set(language.German, msgFieldCallsign, "Rufname")
	set(language.German, msgFieldDepartment, "Abteilung")
	set(language.German, msgFieldKind, "Einheitstyp")
	return b
}

// Locale carries the language used to render alert text.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLocale resolves lang (a BCP 47 tag such as "fr-CA") against the
// supported languages. Unknown or malformed tags fall back to English.
func NewLocale(lang string) Locale {
	tag := language.English
	if parsed, err := language.Parse(lang); err == nil {
		_, idx, _ := language.NewMatcher(supported).Match(parsed)
		tag = supported[idx]
	}
	return Locale{tag: tag, printer: message.NewPrinter(tag, message.Catalog(newCatalog()))}
}

// Tag returns the resolved language.
func (l Locale) Tag() language.Tag { return l.tag }

func (l Locale) p() *message.Printer {
	if l.printer == nil {
		return NewLocale("en").printer
	}
	return l.printer
}

// PanicPayload renders the panic alert for unit.
func (l Locale) PanicPayload(unit model.Unit, department string, at time.Time) Payload {
	p := l.p()
	callsign := unit.Callsign()
	return Payload{
		Title:       p.Sprintf(msgPanicTitle),
		Description: p.Sprintf(msgPanicDescription, callsign),
		Color:       panicRed,
		Fields: []Field{
			{Name: p.Sprintf(msgFieldCallsign), Value: callsign, Inline: true},
			{Name: p.Sprintf(msgFieldDepartment), Value: department, Inline: true},
			{Name: p.Sprintf(msgFieldKind), Value: unit.Ref().Kind.String(), Inline: true},
		},
		Timestamp: at.UTC(),
	}
}
