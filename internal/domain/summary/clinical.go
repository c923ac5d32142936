package summary

import (
	"strings"

	"github.com/upo/upo/internal/domain/form"
)

const noDevices = "Nenhuma invasão"

func composeClinical(r form.Record) (string, Instability, error) {
	if err := requireAnswered(r, clinicalAxes); err != nil {
		return "", Instability{}, err
	}
	date := FormatDate(r.Get("clin_data"))
	inst := Grade(r, clinicalAxes)

	devices := deviceLines(r, "clin_invasao", date, func(dev string) string {
		switch dev {
		case "TOT":
			return "VAD: " + or(r.Get("clin_vad"), "Não inf.")
		case "PVP":
			return r.Get("clin_pvp_loc")
		case "PAM":
			return r.Get("clin_pam_loc")
		case "Dreno":
			return r.Get("clin_dreno_loc")
		}
		return ""
	})
	text := location(r, "clin_leito") + "\n\n\n" +
		inst.String() + "\n\n\n" +
		or(strings.Join(devices, "\n"), noDevices)
	return strings.TrimSpace(text), inst, nil
}
