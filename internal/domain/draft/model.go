package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upo/upo/internal/domain/form"
)

var (
	ErrNoDraft        = errors.New("no saved draft")
	ErrMalformedDraft = errors.New("malformed draft")
	ErrNotFound       = errors.New("not found")
)

// Reserved keys of the persisted JSON object. Anything starting with the UI
// prefix carries derived UI state rather than a field value.
const (
	uiPrefix     = "_ui_"
	keyBMI       = uiPrefix + "imc"
	keyLastSaved = "_last_saved"

	// Same layout a browser's Date.toISOString produces.
	savedAtLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Draft is the persisted snapshot of one draft group.
type Draft struct {
	Record    form.Record
	BMI       string
	LastSaved time.Time
}

// Capture merges the records of every tracked form into one draft. The BMI
// display is taken from the first form that derives one.
func Capture(forms ...*form.State) *Draft {
	d := &Draft{Record: form.Record{}}
	for _, st := range forms {
		d.Record.Merge(st.Record())
		if d.BMI == "" && st.BMIDisplay() != "" {
			d.BMI = st.BMIDisplay()
		}
	}
	return d
}

// Restore applies the draft to each form. Keys a form does not declare are
// ignored by that form.
func Restore(d *Draft, forms ...*form.State) {
	for _, st := range forms {
		st.Restore(d.Record)
	}
}

// Encode renders the draft as the flat JSON object stored under the group key.
func Encode(d *Draft) ([]byte, error) {
	obj := make(map[string]any, len(d.Record)+2)
	for name, v := range d.Record {
		switch v.Kind {
		case form.KindToggle:
			obj[uiPrefix+name] = v.On
		case form.KindMulti:
			list := v.List
			if list == nil {
				list = []string{}
			}
			obj[name] = list
		default:
			obj[name] = v.Text
		}
	}
	if d.BMI != "" {
		obj[keyBMI] = d.BMI
	}
	if !d.LastSaved.IsZero() {
		obj[keyLastSaved] = d.LastSaved.UTC().Format(savedAtLayout)
	}
	return json.Marshal(obj)
}

// Decode parses a stored draft. Each key is decoded according to the kind the
// schemas declare for it; keys no schema declares are dropped.
func Decode(data []byte, schemas []*form.Schema) (*Draft, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDraft, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedDraft)
	}

	d := &Draft{Record: form.Record{}}
	for key, msg := range raw {
		switch {
		case key == keyLastSaved:
			var s string
			if json.Unmarshal(msg, &s) == nil {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					d.LastSaved = t
				}
			}
		case key == keyBMI:
			d.BMI = decodeScalar(msg)
		case strings.HasPrefix(key, uiPrefix):
			name := strings.TrimPrefix(key, uiPrefix)
			if declaresToggle(schemas, name) {
				d.Record[name] = form.Flag(decodeBool(msg))
			}
		default:
			f := lookupField(schemas, key)
			if f == nil {
				continue
			}
			v, ok := decodeValue(msg)
			if !ok {
				continue
			}
			switch {
			case f.List() && v.Kind == form.KindMulti:
				d.Record[key] = form.Multi(v.List...)
			case f.List():
				d.Record[key] = form.Multi(nonEmpty(v.Text)...)
			default:
				text := v.Text
				if v.Kind == form.KindMulti && len(v.List) > 0 {
					text = v.List[0]
				}
				d.Record[key] = form.Value{Kind: f.Kind, Text: text}
			}
		}
	}
	return d, nil
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func lookupField(schemas []*form.Schema, name string) *form.Field {
	for _, s := range schemas {
		if f, ok := s.Field(name); ok {
			return f
		}
	}
	return nil
}

func declaresToggle(schemas []*form.Schema, name string) bool {
	for _, s := range schemas {
		if _, ok := s.Toggle(name); ok {
			return true
		}
	}
	return false
}

// decodeValue accepts a string, a number or a list of strings.
func decodeValue(msg json.RawMessage) (form.Value, bool) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return form.Value{}, false
	}
	if msg[0] == '[' {
		var list []string
		if err := json.Unmarshal(msg, &list); err != nil {
			return form.Value{}, false
		}
		return form.Value{Kind: form.KindMulti, List: list}, true
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return form.Text(s), true
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err == nil {
		return form.Text(n.String()), true
	}
	return form.Value{}, false
}

func decodeScalar(msg json.RawMessage) string {
	var s string
	if json.Unmarshal(msg, &s) == nil {
		return s
	}
	return ""
}

func decodeBool(msg json.RawMessage) bool {
	var b bool
	if json.Unmarshal(msg, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(msg, &s) == nil {
		return s != "" && s != "false"
	}
	return false
}

// Entry is one stored draft as the repository sees it.
type Entry struct {
	Workspace string    `json:"workspace"`
	Key       string    `json:"key"`
	Group     string    `json:"group,omitempty"`
	Payload   []byte    `json:"-"`
	SavedAt   time.Time `json:"saved_at"`
	Size      int       `json:"size"`
}
