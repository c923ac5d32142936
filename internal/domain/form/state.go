package form

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Default tokens resolved against the state's clock.
const (
	DefaultToday    = "today"
	DefaultTomorrow = "tomorrow"
	DefaultNow      = "now"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// State is the live, editable state of one form: current field values, toggle
// checkboxes, and the enabled/visible flags their effects drive.
//
// Toggle effects are applied through a single setter (applyToggle) that is
// used both for live edits and for restoring a draft, so a restored form is
// indistinguishable from one the user filled in by hand.
//
// State is not safe for concurrent use.
type State struct {
	schema *Schema
	clock  func() time.Time

	values   map[string]Value
	toggles  map[string]bool
	disabled map[string]bool
	hidden   map[string]bool
	bmi      string
}

func NewState(schema *Schema, clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}
	s := &State{schema: schema, clock: clock}
	s.Reset()
	return s
}

func (s *State) Schema() *Schema { return s.schema }

// Reset returns every field to its default, clears every toggle and resets the
// enabled/visible flags. Date and time defaults are taken from the clock at
// the moment of the reset.
func (s *State) Reset() {
	s.values = make(map[string]Value, len(s.schema.Fields))
	s.toggles = make(map[string]bool, len(s.schema.Toggles))
	s.disabled = make(map[string]bool)
	s.hidden = make(map[string]bool)
	for i := range s.schema.Fields {
		f := &s.schema.Fields[i]
		if f.Kind == KindMulti {
			s.values[f.Name] = Multi()
			continue
		}
		s.values[f.Name] = Value{Kind: f.Kind, Text: s.resolveDefault(f.Default)}
	}
	for i := range s.schema.Toggles {
		s.applyToggle(&s.schema.Toggles[i], false)
	}
	s.recalcBMI()
}

func (s *State) resolveDefault(d string) string {
	now := s.clock()
	switch d {
	case DefaultToday:
		return now.Format(dateLayout)
	case DefaultTomorrow:
		return now.AddDate(0, 0, 1).Format(dateLayout)
	case DefaultNow:
		return now.Format(timeLayout)
	}
	return d
}

// Set applies a user edit to a field. Text and choice fields take at most one
// value (none, or "", clears a choice); multi-select fields take the checked
// options in order. Toggles bound to an edited multi-select follow it.
func (s *State) Set(name string, values ...string) error {
	f, ok := s.schema.Field(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.schema.Name, name)
	}
	if s.disabled[name] {
		return fmt.Errorf("%w: %s", ErrFieldDisabled, name)
	}

	switch f.Kind {
	case KindMulti:
		seen := make(map[string]bool, len(values))
		list := make([]string, 0, len(values))
		for _, v := range values {
			if v == "" || seen[v] {
				continue
			}
			if !f.allows(v) {
				return fmt.Errorf("%w: %s=%q", ErrInvalidOption, name, v)
			}
			seen[v] = true
			list = append(list, v)
		}
		s.values[name] = Multi(list...)
		s.syncBound(name)
	default:
		if len(values) > 1 {
			return fmt.Errorf("field %s takes a single value, got %d", name, len(values))
		}
		v := ""
		if len(values) == 1 {
			v = values[0]
		}
		if f.Kind == KindChoice && v != "" && !f.allows(v) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidOption, name, v)
		}
		s.values[name] = Value{Kind: f.Kind, Text: v}
	}

	if s.schema.BMI != nil && (name == s.schema.BMI.Weight || name == s.schema.BMI.Height) {
		s.recalcBMI()
	}
	return nil
}

// SetToggle applies a click on a toggle checkbox. For a toggle bound to a
// multi-select option the option is checked or unchecked accordingly.
func (s *State) SetToggle(name string, on bool) error {
	t, ok := s.schema.Toggle(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownToggle, s.schema.Name, name)
	}
	if t.Bound != nil {
		cur := s.values[t.Bound.Field].List
		switch {
		case on && !slices.Contains(cur, t.Bound.Option):
			s.values[t.Bound.Field] = Multi(append(slices.Clone(cur), t.Bound.Option)...)
		case !on:
			s.values[t.Bound.Field] = Multi(slices.DeleteFunc(slices.Clone(cur), func(o string) bool {
				return o == t.Bound.Option
			})...)
		}
	}
	s.applyToggle(t, on)
	return nil
}

// syncBound re-runs the setters of every toggle bound to the multi-select.
func (s *State) syncBound(field string) {
	list := s.values[field]
	for i := range s.schema.Toggles {
		t := &s.schema.Toggles[i]
		if t.Bound == nil || t.Bound.Field != field {
			continue
		}
		s.applyToggle(t, list.Has(t.Bound.Option))
	}
}

// applyToggle is the idempotent setter behind every toggle effect.
func (s *State) applyToggle(t *Toggle, on bool) {
	s.toggles[t.Name] = on
	switch t.Effect {
	case EffectLock:
		for _, d := range t.Details {
			if on {
				s.setText(d, s.resolveDefault(t.Fill[d]))
			} else {
				s.setText(d, "")
			}
			s.disabled[d] = on
		}
	case EffectEnable:
		for _, d := range t.Details {
			s.disabled[d] = !on
			if on && s.values[d].Empty() {
				s.setText(d, s.resolveDefault(t.Fill[d]))
			}
		}
	case EffectReveal:
		for _, d := range t.Details {
			s.hidden[d] = !on
			if !on {
				s.setText(d, "")
			}
		}
	}
}

func (s *State) setText(name, v string) {
	f, ok := s.schema.Field(name)
	if !ok {
		return
	}
	if f.Kind == KindMulti {
		if v == "" {
			s.values[name] = Multi()
		} else {
			s.values[name] = Multi(v)
		}
		return
	}
	s.values[name] = Value{Kind: f.Kind, Text: v}
}

func (s *State) recalcBMI() {
	if s.schema.BMI == nil {
		s.bmi = ""
		return
	}
	s.bmi = FormatBMI(s.values[s.schema.BMI.Weight].Text, s.values[s.schema.BMI.Height].Text)
}

// Record snapshots the form the way a browser serializes it: disabled fields
// are left out, unanswered choices and empty multi-selects are absent, text
// fields are always present. Every toggle is included as a flag.
func (s *State) Record() Record {
	r := make(Record, len(s.schema.Fields)+len(s.schema.Toggles))
	for i := range s.schema.Fields {
		f := &s.schema.Fields[i]
		if s.disabled[f.Name] {
			continue
		}
		v := s.values[f.Name]
		switch f.Kind {
		case KindText:
			r[f.Name] = Text(v.Text)
		case KindChoice:
			if v.Text != "" {
				r[f.Name] = Choice(v.Text)
			}
		case KindMulti:
			if len(v.List) > 0 {
				r[f.Name] = Multi(v.List...)
			}
		}
	}
	for i := range s.schema.Toggles {
		name := s.schema.Toggles[i].Name
		r[name] = Flag(s.toggles[name])
	}
	return r
}

// Restore applies a saved record onto the form. Scalar fields get their value,
// multi-selects get their options checked, unknown keys are ignored. Toggles
// saved as on are replayed through the same setter a click would run.
func (s *State) Restore(r Record) {
	// A toggle that is on now but was off when saved is switched off first so
	// that its clearing side effects cannot wipe the values restored below.
	for i := range s.schema.Toggles {
		t := &s.schema.Toggles[i]
		if s.toggles[t.Name] && !s.savedOn(t, r) {
			s.applyToggle(t, false)
		}
	}
	for i := range s.schema.Fields {
		f := &s.schema.Fields[i]
		v, ok := r[f.Name]
		if !ok {
			continue
		}
		s.values[f.Name] = coerce(v, f.Kind)
	}
	for i := range s.schema.Toggles {
		t := &s.schema.Toggles[i]
		if s.savedOn(t, r) {
			s.applyToggle(t, true)
		}
	}
	s.recalcBMI()
}

func (s *State) savedOn(t *Toggle, r Record) bool {
	if r.On(t.Name) {
		return true
	}
	if t.Bound != nil {
		if v, ok := r[t.Bound.Field]; ok {
			return coerce(v, KindMulti).Has(t.Bound.Option)
		}
	}
	return false
}

func (s *State) Value(name string) Value { return s.values[name] }
func (s *State) Toggled(name string) bool { return s.toggles[name] }
func (s *State) Disabled(name string) bool { return s.disabled[name] }
func (s *State) Hidden(name string) bool  { return s.hidden[name] }

// BMIDisplay is the derived body mass index shown next to weight and height,
// or NoValue. It is empty for forms without a BMI.
func (s *State) BMIDisplay() string { return s.bmi }

// Snapshot is the JSON view of a live form.
type Snapshot struct {
	Form     string            `json:"form"`
	Values   map[string]any    `json:"values"`
	Toggles  map[string]bool   `json:"toggles,omitempty"`
	Disabled []string          `json:"disabled,omitempty"`
	Hidden   []string          `json:"hidden,omitempty"`
	Display  map[string]string `json:"display,omitempty"`
}

func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Form:    s.schema.Name,
		Values:  make(map[string]any, len(s.values)),
		Toggles: make(map[string]bool, len(s.toggles)),
	}
	for name, v := range s.values {
		if v.Kind == KindMulti {
			list := v.List
			if list == nil {
				list = []string{}
			}
			snap.Values[name] = list
			continue
		}
		snap.Values[name] = v.Text
	}
	for name, on := range s.toggles {
		snap.Toggles[name] = on
	}
	snap.Disabled = sortedTrue(s.disabled)
	snap.Hidden = sortedTrue(s.hidden)
	if s.schema.BMI != nil {
		snap.Display = map[string]string{"imc": s.bmi}
	}
	return snap
}

func sortedTrue(m map[string]bool) []string {
	var out []string
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
