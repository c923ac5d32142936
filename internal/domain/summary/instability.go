package summary

import (
	"strings"

	"github.com/upo/upo/internal/domain/form"
)

const (
	answerYes = "Sim"
	answerNo  = "Não"
)

// Axis is one instability question of a form.
type Axis struct {
	Field string
	// Phrase label used in the summary.
	Name string
	// Label shown when the answer is missing.
	Label string
	Pain  bool
}

// Phrase maps an answer to its summary phrase. Unanswered axes have none.
func (a Axis) Phrase(answer string) (string, bool) {
	switch answer {
	case answerNo:
		if a.Pain {
			return "+ Sem dor forte", true
		}
		return "+ " + a.Name + " ok", true
	case answerYes:
		if a.Pain {
			return "- Dor forte", true
		}
		return "- Instabilidade " + strings.ToLower(a.Name), true
	}
	return "", false
}

func axes(neuro, hemo, vent, dor string) []Axis {
	return []Axis{
		{Field: hemo, Name: "Hemodinâmica", Label: "Hemodinâmica"},
		{Field: neuro, Name: "Neurológico", Label: "Neurológica"},
		{Field: vent, Name: "Ventilatório", Label: "Ventilatória"},
		{Field: dor, Name: "Dor forte", Label: "Dor Forte", Pain: true},
	}
}

var (
	surgicalAxes     = axes("inst_neuro_surg", "inst_hemo_surg", "inst_vent_surg", "inst_dor_surg")
	clinicalAxes     = axes("inst_neuro", "inst_hemo", "inst_vent", "inst_dor")
	reassessmentAxes = axes("reav_inst_neuro", "reav_inst_hemo", "reav_inst_vent", "reav_inst_dor")
)

// gateOrder is the order missing answers are reported in.
var gateOrder = []string{"Neurológica", "Hemodinâmica", "Ventilatória", "Dor Forte"}

// Instability holds the phrases of the answered axes, split by whether they
// reassure or call for attention.
type Instability struct {
	Reassuring []string
	Concerning []string
}

func Grade(r form.Record, axes []Axis) Instability {
	var inst Instability
	for _, a := range axes {
		p, ok := a.Phrase(r.Get(a.Field))
		if !ok {
			continue
		}
		if strings.HasPrefix(p, "+") {
			inst.Reassuring = append(inst.Reassuring, p)
		} else {
			inst.Concerning = append(inst.Concerning, p)
		}
	}
	return inst
}

// String renders the reassuring group, a blank line, then the concerning
// group. The blank line only appears when both groups are present.
func (i Instability) String() string {
	s := strings.Join(i.Reassuring, "\n")
	if len(i.Reassuring) > 0 && len(i.Concerning) > 0 {
		s += "\n\n"
	}
	return s + strings.Join(i.Concerning, "\n")
}

// requireAnswered returns a MissingFieldsError naming every unanswered axis.
func requireAnswered(r form.Record, axes []Axis) error {
	byLabel := make(map[string]Axis, len(axes))
	for _, a := range axes {
		byLabel[a.Label] = a
	}
	var missing []MissingField
	for _, label := range gateOrder {
		a := byLabel[label]
		if !r.Answered(a.Field) {
			missing = append(missing, MissingField{Field: a.Field, Label: a.Label})
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Missing: missing, Highlight: HighlightDuration}
	}
	return nil
}
