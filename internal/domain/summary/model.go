package summary

import (
	"errors"
	"strings"
	"time"
)

// Variants, named after the form each one reads.
const (
	VariantSurgical     = "surgical"
	VariantClinical     = "clinical"
	VariantReassessment = "reassessment"
)

// DefaultPasteBase is the paste-bin the composed text is meant to be pasted
// into.
const DefaultPasteBase = "http://dontpad.com"

var pastePaths = map[string]string{
	VariantSurgical:     "admissao_upo_cirurgica",
	VariantClinical:     "admissao_upo_clinica",
	VariantReassessment: "reavaliacao_upo",
}

// Summary is the composed handoff text of one form.
type Summary struct {
	Variant  string `json:"variant"`
	Text     string `json:"text"`
	Reminder string `json:"reminder"`
	PasteURL string `json:"paste_url"`
}

// HighlightDuration is how long the unanswered inputs stay flagged.
const HighlightDuration = 3 * time.Second

type MissingField struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// MissingFieldsError aborts composition when required answers are missing.
// Nothing is saved or cleared when it is returned.
type MissingFieldsError struct {
	Missing   []MissingField
	Highlight time.Duration
}

func (e *MissingFieldsError) Error() string {
	labels := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		labels[i] = m.Label
	}
	return "Preencha Instabilidade: " + strings.Join(labels, ", ")
}

// Fields returns the names of the inputs to flag.
func (e *MissingFieldsError) Fields() []string {
	out := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		out[i] = m.Field
	}
	return out
}

var ErrUnknownVariant = errors.New("unknown summary variant")
