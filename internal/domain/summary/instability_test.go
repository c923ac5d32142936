package summary

import (
	"errors"
	"strings"
	"testing"

	"github.com/upo/upo/internal/domain/form"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-07", "07/03"},
		{"", ""},
		{"07/03", "07/03"},
		{"2024-03", "2024-03"},
	}
	for _, tt := range tests {
		if got := FormatDate(tt.in); got != tt.want {
			t.Errorf("FormatDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAxis_Phrase(t *testing.T) {
	neuro := clinicalAxes[1]
	pain := clinicalAxes[3]
	tests := []struct {
		axis   Axis
		answer string
		want   string
		ok     bool
	}{
		{neuro, "Não", "+ Neurológico ok", true},
		{neuro, "Sim", "- Instabilidade neurológico", true},
		{neuro, "", "", false},
		{pain, "Não", "+ Sem dor forte", true},
		{pain, "Sim", "- Dor forte", true},
		{pain, "talvez", "", false},
	}
	for _, tt := range tests {
		got, ok := tt.axis.Phrase(tt.answer)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s %q: got (%q, %v), want (%q, %v)", tt.axis.Field, tt.answer, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGrade_ThreeReassuringOneConcerning(t *testing.T) {
	rec := form.Record{
		"inst_neuro": form.Choice("Sim"),
		"inst_hemo":  form.Choice("Não"),
		"inst_vent":  form.Choice("Não"),
		"inst_dor":   form.Choice("Não"),
	}
	inst := Grade(rec, clinicalAxes)
	if len(inst.Reassuring) != 3 || len(inst.Concerning) != 1 {
		t.Fatalf("expected 3+1 phrases, got %v / %v", inst.Reassuring, inst.Concerning)
	}
	want := "+ Hemodinâmica ok\n+ Ventilatório ok\n+ Sem dor forte\n\n- Instabilidade neurológico"
	if got := inst.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInstability_StringWithoutBlankLine(t *testing.T) {
	only := Instability{Concerning: []string{"- Dor forte"}}
	if got := only.String(); got != "- Dor forte" {
		t.Errorf("got %q", got)
	}
	none := Instability{}
	if got := none.String(); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestRequireAnswered(t *testing.T) {
	rec := form.Record{
		"inst_hemo": form.Choice("Não"),
		"inst_vent": form.Choice("Não"),
		"inst_dor":  form.Choice("Sim"),
	}
	err := requireAnswered(rec, clinicalAxes)
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
	if len(missing.Missing) != 1 || missing.Missing[0].Label != "Neurológica" {
		t.Errorf("expected only Neurológica, got %+v", missing.Missing)
	}
	if err.Error() != "Preencha Instabilidade: Neurológica" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if missing.Highlight != HighlightDuration {
		t.Errorf("expected highlight %v, got %v", HighlightDuration, missing.Highlight)
	}
}

func TestRequireAnswered_ReportsInFixedOrder(t *testing.T) {
	err := requireAnswered(form.Record{}, clinicalAxes)
	want := "Preencha Instabilidade: Neurológica, Hemodinâmica, Ventilatória, Dor Forte"
	if err == nil || err.Error() != want {
		t.Fatalf("got %v, want %q", err, want)
	}
	var missing *MissingFieldsError
	errors.As(err, &missing)
	if got := strings.Join(missing.Fields(), ","); got != "inst_neuro,inst_hemo,inst_vent,inst_dor" {
		t.Errorf("unexpected fields %s", got)
	}
}
