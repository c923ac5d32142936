package summary

import (
	"strings"

	"github.com/upo/upo/internal/domain/form"
)

// FormatDate turns a YYYY-MM-DD date into DD/MM. Values that are not in that
// shape are returned unchanged.
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	return parts[2] + "/" + parts[1]
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func location(r form.Record, field string) string {
	return or(r.Get(field), "N/I")
}

// deviceLines renders one line per selected device with its detail, dated
// when a date is known.
func deviceLines(r form.Record, field, date string, detail func(device string) string) []string {
	var lines []string
	for _, dev := range r.List(field) {
		text := dev
		if d := detail(dev); d != "" {
			text += " " + d
		}
		if date != "" {
			text = date + " " + text
		}
		lines = append(lines, text)
	}
	return lines
}

// reminderPayload is the short text embedded in a calendar reminder: the bed
// and whatever needs attention.
func reminderPayload(loc string, inst Instability) string {
	lines := append([]string{"Leito " + loc}, inst.Concerning...)
	return strings.Join(lines, "\n")
}
