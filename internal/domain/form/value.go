package form

import (
	"slices"
	"strings"
)

// Value is one entry of a Record. Kind selects which of Text, List or On is
// meaningful.
type Value struct {
	Kind Kind     `json:"kind"`
	Text string   `json:"text,omitempty"`
	List []string `json:"list,omitempty"`
	On   bool     `json:"on,omitempty"`
}

func Text(s string) Value   { return Value{Kind: KindText, Text: s} }
func Choice(s string) Value { return Value{Kind: KindChoice, Text: s} }
func Flag(on bool) Value    { return Value{Kind: KindToggle, On: on} }

func Multi(options ...string) Value {
	return Value{Kind: KindMulti, List: slices.Clone(options)}
}

// String renders the value the way a summary reads it: list values are
// joined with ", ".
func (v Value) String() string {
	switch v.Kind {
	case KindMulti:
		return strings.Join(v.List, ", ")
	case KindToggle:
		if v.On {
			return "true"
		}
		return ""
	default:
		return v.Text
	}
}

// Has reports whether a multi-select value has the option checked.
func (v Value) Has(option string) bool {
	return slices.Contains(v.List, option)
}

// Empty reports whether the value carries no answer.
func (v Value) Empty() bool {
	switch v.Kind {
	case KindMulti:
		return len(v.List) == 0
	case KindToggle:
		return !v.On
	default:
		return v.Text == ""
	}
}

// Record maps field and toggle names to their values.
type Record map[string]Value

func (r Record) Get(name string) string {
	return r[name].String()
}

func (r Record) List(name string) []string {
	v, ok := r[name]
	if !ok {
		return nil
	}
	if v.Kind == KindMulti {
		return v.List
	}
	if v.Text == "" {
		return nil
	}
	return []string{v.Text}
}

func (r Record) On(name string) bool {
	return r[name].On
}

// Answered reports whether the field is present with a non-empty value.
func (r Record) Answered(name string) bool {
	v, ok := r[name]
	return ok && !v.Empty()
}

// Merge copies every entry of other into r, overwriting on conflict.
func (r Record) Merge(other Record) {
	for k, v := range other {
		r[k] = v
	}
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		v.List = slices.Clone(v.List)
		out[k] = v
	}
	return out
}

// coerce adapts a value decoded without schema knowledge to the declared kind
// of a field.
func coerce(v Value, kind Kind) Value {
	switch kind {
	case KindMulti:
		if v.Kind == KindMulti {
			return Multi(v.List...)
		}
		if v.Text == "" {
			return Multi()
		}
		return Multi(v.Text)
	case KindText, KindChoice:
		s := v.Text
		if v.Kind == KindMulti {
			s = ""
			if len(v.List) > 0 {
				s = v.List[0]
			}
		}
		return Value{Kind: kind, Text: s}
	}
	return v
}
