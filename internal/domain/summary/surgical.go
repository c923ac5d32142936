package summary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/upo/upo/internal/domain/form"
)

var (
	sectionRule = "—" + strings.Repeat("-", 33)
	historyRule = "—" + strings.Repeat("-", 103)
)

// checklist is the fixed tail of the surgical handoff. Three of its lines
// depend on the record and are substituted in order.
const checklist = `
( ) Admissão
( ) Prescrição
( ) Rx agora
( ) Lab agora
( ) Lab rotina 
%s
%s
%s
(x) Checar reconciliação
( ) Nome do familiar / acompanhante
( ) Coletar TCI
( ) Protocolo de TEV
( ) Parametrização na prescrição 
( ) Check Prontuario fisico`

func composeSurgical(r form.Record) (string, Instability) {
	date := FormatDate(r.Get("data_admissao"))
	inst := Grade(r, surgicalAxes)

	var b strings.Builder
	b.WriteString(surgicalIdentity(r, date))
	b.WriteString("\n\n\n")
	b.WriteString(surgicalProcedure(r, date))
	b.WriteString("\n\n\n\nINSTABILIDADES:\n\n\n")
	b.WriteString(inst.String())
	b.WriteString("\n\n\n\nOrientações:\n")
	b.WriteString(surgicalChecklist(r))
	return strings.TrimSpace(b.String()), inst
}

func surgicalIdentity(r form.Record, date string) string {
	var b strings.Builder
	b.WriteString("Nome,\n" + r.Get("idade") + " anos")
	if peso := r.Get("peso"); peso != "" {
		b.WriteString("\n" + peso + " kg")
	}
	if altura := r.Get("altura"); altura != "" {
		b.WriteString("\n" + altura + " m")
	}
	if bmi := form.FormatBMI(r.Get("peso"), r.Get("altura")); bmi != form.NoValue {
		b.WriteString("\nIMC " + bmi)
	}
	b.WriteString("\n\nMA: " + r.Get("equipe") + "\n\n" + sectionRule)

	if atb := r.Get("antibiotico"); atb != "" {
		b.WriteString("\n" + date + " " + atb)
	}
	var lines []string
	for _, inv := range r.List("invasao") {
		text := inv
		switch {
		case inv == "PAM" && r.Get("inv_pam_loc") != "":
			text += " " + r.Get("inv_pam_loc")
		case inv == "PVP" && r.Get("inv_pvp_loc") != "":
			text += " " + r.Get("inv_pvp_loc")
		}
		lines = append(lines, date+" "+text)
	}
	if drenos := r.Get("drenos"); drenos != "" {
		lines = append(lines, date+" "+drenos)
	}
	if len(lines) > 0 {
		b.WriteString("\n\n" + strings.Join(lines, "\n"))
	}
	return b.String()
}

func surgicalProcedure(r form.Record, date string) string {
	surgery := date + " PO " + r.Get("cirurgia")
	if pre := r.Get("info_pre_op"); pre != "" {
		surgery += " (" + pre + ")"
	}

	var duration string
	if h, m := r.Get("duracao_h"), r.Get("duracao_min"); h != "" || m != "" {
		duration = "CC " + or(h, "0") + "h"
		if m != "" && m != "0" && m != "00" {
			duration += m
		}
	}

	var hv string
	crist, _ := form.ParseLeadingInt(r.Get("cristaloide"))
	col, _ := form.ParseLeadingInt(r.Get("coloide"))
	if total := crist + col; total > 0 {
		hv = "HV " + strconv.Itoa(total) + "ml"
	}

	anesthesia := "Anestesia " + r.Get("anestesia")
	if drugs := r.Get("anestesia_drogas"); drugs != "" {
		anesthesia += " com " + drugs
	}

	var exit []string
	if med := r.Get("sds_med"); med != "" {
		exit = append(exit, med)
	}
	if other := r.Get("sds_outros"); other != "" {
		exit = append(exit, other)
	}

	intraOp := joinNonEmpty(" / ",
		duration,
		hv,
		anesthesia,
		"Sangramento "+or(r.Get("sangramento"), "-"),
		"Diurese "+or(r.Get("diurese"), "-"),
		strings.Join(exit, " + "),
	)

	var b strings.Builder
	b.WriteString(surgery + "\n" + intraOp)
	if transf := r.Get("transfusao"); transf != "" {
		if len(transf) == 1 && transf[0] >= '0' && transf[0] <= '9' {
			transf = "0" + transf
		}
		b.WriteString("\n\nHemotransfusões: " + transf + " " + date)
	}
	b.WriteString("\n" + historyRule)

	history := r.Get("comorb")
	if other := r.Get("comorb_outros"); other != "" {
		if history != "" {
			history += "; " + other
		} else {
			history = other
		}
	}
	b.WriteString("\nHPP: " + or(history, "Nega") + "\n\nEm uso de: " + or(r.Get("meds_habituais"), "Nega"))
	b.WriteString("\n\n" + allergyLine(r) + "\n" + airwayLine(r))
	return b.String()
}

func allergyLine(r form.Record) string {
	if r.On("nega_alergia") {
		return "Nega alergia"
	}
	return "Alergia: " + r.Get("alergia_detalhe")
}

func airwayLine(r form.Record) string {
	line := "VA ok"
	if r.Get("vad") == answerYes {
		line = "VAD"
	}
	if cormack := r.Get("cormack"); cormack != "" {
		line += " - Cormack " + cormack
	}
	device := r.Get("disp_iot")
	if device == "Videolaringo" {
		device = "VL"
	}
	if device != "" {
		line += " - " + device
	}
	if strings.Contains(r.Get("bougie"), answerYes) {
		line += " + Bougie"
	}
	return line
}

func surgicalChecklist(r form.Record) string {
	dietMark, diet := "( )", "Dieta liberada?"
	if d := r.Get("dieta"); strings.Contains(d, "Liberada") {
		dietMark = "(x)"
		diet += " a partir de " + r.Get("dieta_tempo")
	} else if d != "" {
		diet += " " + d
	}

	clexaneMark, clexane := "( )", "Clexane?"
	switch {
	case r.On("clexane"):
		clexaneMark = "(x)"
		if d, h := r.Get("heparina_data"), r.Get("heparina_hora"); d != "" || h != "" {
			clexane += " Iniciar " + FormatDate(d) + " às " + h
		}
	case r.Answered("compressor"):
		clexaneMark = "(-)"
		clexane += " não, CPMI"
	}

	walkMark := "( )"
	if r.Get("deambular") == answerYes {
		walkMark = "(x)"
	}

	return fmt.Sprintf(checklist,
		dietMark+" "+diet,
		clexaneMark+" "+clexane,
		walkMark+" deambular em 12h",
	)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
