package summary

import (
	"strings"

	"github.com/upo/upo/internal/domain/form"
)

func composeReassessment(r form.Record) (string, Instability) {
	inst := Grade(r, reassessmentAxes)

	header := strings.TrimSpace("Reavaliação " + FormatDate(r.Get("reav_data")) + " " + r.Get("reav_hora"))
	blocks := []string{header + "\nLeito " + location(r, "reav_leito")}
	if s := inst.String(); s != "" {
		blocks = append(blocks, s)
	}

	devices := deviceLines(r, "reav_invasao", FormatDate(r.Get("reav_data")), func(string) string { return "" })
	if detail := r.Get("reav_invasao_detalhe"); detail != "" {
		devices = append(devices, detail)
	}
	blocks = append(blocks, or(strings.Join(devices, "\n"), noDevices))

	blocks = append(blocks,
		"Pendências: "+or(r.Get("reav_pendencias"), "Nenhuma")+
			"\nConduta: "+or(r.Get("reav_conduta"), "-"))
	return strings.Join(blocks, "\n\n"), inst
}
