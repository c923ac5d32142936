package summary

import (
	"fmt"
	"strings"

	"github.com/upo/upo/internal/domain/form"
)

// Composer renders records into handoff text. It is stateless and safe for
// concurrent use.
type Composer struct {
	pasteBase string
}

func NewComposer(pasteBase string) *Composer {
	if pasteBase == "" {
		pasteBase = DefaultPasteBase
	}
	return &Composer{pasteBase: strings.TrimRight(pasteBase, "/")}
}

// Compose builds the summary of one form variant from its record. The record
// is only read. A *MissingFieldsError is returned when the variant requires
// answers the record lacks.
func (c *Composer) Compose(variant string, r form.Record) (*Summary, error) {
	var (
		text string
		inst Instability
		loc  string
	)
	switch variant {
	case VariantSurgical:
		text, inst = composeSurgical(r)
		loc = location(r, "leito_admissao")
	case VariantClinical:
		var err error
		if text, inst, err = composeClinical(r); err != nil {
			return nil, err
		}
		loc = location(r, "clin_leito")
	case VariantReassessment:
		text, inst = composeReassessment(r)
		loc = location(r, "reav_leito")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return &Summary{
		Variant:  variant,
		Text:     text,
		Reminder: reminderPayload(loc, inst),
		PasteURL: c.PasteURL(variant),
	}, nil
}

// PasteURL is where the summary of a variant is meant to be pasted.
func (c *Composer) PasteURL(variant string) string {
	p, ok := pastePaths[variant]
	if !ok {
		return ""
	}
	return c.pasteBase + "/" + p
}
