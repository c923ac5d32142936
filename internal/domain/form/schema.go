package form

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var catalogYAML []byte

var (
	ErrUnknownForm   = errors.New("unknown form")
	ErrUnknownGroup  = errors.New("unknown draft group")
	ErrUnknownField  = errors.New("unknown field")
	ErrUnknownToggle = errors.New("unknown toggle")
	ErrFieldDisabled = errors.New("field is disabled")
	ErrInvalidOption = errors.New("value is not an allowed option")
)

// Kind is the declared cardinality of a field. It never changes after the
// catalog is loaded.
type Kind string

const (
	KindText   Kind = "text"
	KindChoice Kind = "choice"
	KindMulti  Kind = "multi"
	KindToggle Kind = "toggle"
)

// Toggle effects understood by State.
const (
	EffectLock   = "lock"
	EffectEnable = "enable"
	EffectReveal = "reveal"
)

type Field struct {
	Name    string   `yaml:"name" json:"name"`
	Kind    Kind     `yaml:"kind" json:"kind"`
	Label   string   `yaml:"label" json:"label"`
	Options []string `yaml:"options" json:"options,omitempty"`
	Default string   `yaml:"default" json:"default,omitempty"`
}

// List reports whether the field holds an ordered list of values.
func (f *Field) List() bool { return f.Kind == KindMulti }

func (f *Field) allows(v string) bool {
	if len(f.Options) == 0 {
		return true
	}
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Binding ties a toggle to one option of a multi-select field: the toggle is
// on exactly when the option is checked.
type Binding struct {
	Field  string `yaml:"field" json:"field"`
	Option string `yaml:"option" json:"option"`
}

type Toggle struct {
	Name    string            `yaml:"name" json:"name"`
	Effect  string            `yaml:"effect" json:"effect"`
	Bound   *Binding          `yaml:"bound" json:"bound,omitempty"`
	Details []string          `yaml:"details" json:"details"`
	Fill    map[string]string `yaml:"fill" json:"fill,omitempty"`
	SaveNow bool              `yaml:"save_now" json:"save_now"`
}

// BMIBinding names the fields a form derives its body mass index display from.
type BMIBinding struct {
	Weight string `yaml:"weight" json:"weight"`
	Height string `yaml:"height" json:"height"`
}

type Schema struct {
	Name    string      `yaml:"name" json:"name"`
	Title   string      `yaml:"title" json:"title"`
	BMI     *BMIBinding `yaml:"bmi" json:"bmi,omitempty"`
	Fields  []Field     `yaml:"fields" json:"fields"`
	Toggles []Toggle    `yaml:"toggles" json:"toggles,omitempty"`
	// ResumeWhen lists fields whose presence in a restored draft means the
	// user was last working on this form.
	ResumeWhen []string `yaml:"resume_when" json:"resume_when,omitempty"`

	fields  map[string]*Field
	toggles map[string]*Toggle
}

func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

func (s *Schema) Toggle(name string) (*Toggle, bool) {
	t, ok := s.toggles[name]
	return t, ok
}

// Group is a set of forms persisted together under one storage key.
type Group struct {
	Name  string   `yaml:"name" json:"name"`
	Key   string   `yaml:"key" json:"key"`
	Forms []string `yaml:"forms" json:"forms"`
}

type Catalog struct {
	Groups []Group   `yaml:"groups"`
	Forms  []*Schema `yaml:"forms"`

	byForm  map[string]*Schema
	byGroup map[string]*Group
	groupOf map[string]*Group
}

// ParseCatalog decodes and validates a YAML form catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.byForm = make(map[string]*Schema, len(c.Forms))
	c.byGroup = make(map[string]*Group, len(c.Groups))
	c.groupOf = make(map[string]*Group)

	for _, s := range c.Forms {
		if s.Name == "" {
			return fmt.Errorf("form without a name")
		}
		if _, dup := c.byForm[s.Name]; dup {
			return fmt.Errorf("duplicate form %q", s.Name)
		}
		s.fields = make(map[string]*Field, len(s.Fields))
		for i := range s.Fields {
			f := &s.Fields[i]
			switch f.Kind {
			case KindText, KindChoice, KindMulti:
			default:
				return fmt.Errorf("form %s: field %s: invalid kind %q", s.Name, f.Name, f.Kind)
			}
			if _, dup := s.fields[f.Name]; dup {
				return fmt.Errorf("form %s: duplicate field %s", s.Name, f.Name)
			}
			s.fields[f.Name] = f
		}
		s.toggles = make(map[string]*Toggle, len(s.Toggles))
		for i := range s.Toggles {
			t := &s.Toggles[i]
			switch t.Effect {
			case EffectLock, EffectEnable, EffectReveal:
			default:
				return fmt.Errorf("form %s: toggle %s: invalid effect %q", s.Name, t.Name, t.Effect)
			}
			if _, clash := s.fields[t.Name]; clash {
				return fmt.Errorf("form %s: toggle %s shadows a field", s.Name, t.Name)
			}
			for _, d := range t.Details {
				if _, ok := s.fields[d]; !ok {
					return fmt.Errorf("form %s: toggle %s: unknown detail %s", s.Name, t.Name, d)
				}
			}
			if t.Bound != nil {
				bf, ok := s.fields[t.Bound.Field]
				if !ok || bf.Kind != KindMulti {
					return fmt.Errorf("form %s: toggle %s: bound field %s is not a multi-select", s.Name, t.Name, t.Bound.Field)
				}
			}
			s.toggles[t.Name] = t
		}
		if s.BMI != nil {
			if _, ok := s.fields[s.BMI.Weight]; !ok {
				return fmt.Errorf("form %s: unknown bmi weight field %s", s.Name, s.BMI.Weight)
			}
			if _, ok := s.fields[s.BMI.Height]; !ok {
				return fmt.Errorf("form %s: unknown bmi height field %s", s.Name, s.BMI.Height)
			}
		}
		for _, name := range s.ResumeWhen {
			if _, ok := s.fields[name]; !ok {
				return fmt.Errorf("form %s: unknown resume field %s", s.Name, name)
			}
		}
		c.byForm[s.Name] = s
	}

	for i := range c.Groups {
		g := &c.Groups[i]
		if g.Key == "" {
			return fmt.Errorf("group %s: storage key is required", g.Name)
		}
		for _, name := range g.Forms {
			if _, ok := c.byForm[name]; !ok {
				return fmt.Errorf("group %s: unknown form %s", g.Name, name)
			}
			if other, taken := c.groupOf[name]; taken {
				return fmt.Errorf("form %s belongs to groups %s and %s", name, other.Name, g.Name)
			}
			c.groupOf[name] = g
		}
		c.byGroup[g.Name] = g
	}
	for name := range c.byForm {
		if _, ok := c.groupOf[name]; !ok {
			return fmt.Errorf("form %s is not tracked by any group", name)
		}
	}
	return nil
}

func (c *Catalog) Form(name string) (*Schema, error) {
	s, ok := c.byForm[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, name)
	}
	return s, nil
}

func (c *Catalog) Group(name string) (*Group, error) {
	g, ok := c.byGroup[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, name)
	}
	return g, nil
}

// GroupOf returns the draft group that tracks the named form.
func (c *Catalog) GroupOf(form string) (*Group, error) {
	g, ok := c.groupOf[form]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, form)
	}
	return g, nil
}

// Schemas returns the schemas of every form in the group, in declaration order.
func (c *Catalog) Schemas(g *Group) []*Schema {
	out := make([]*Schema, 0, len(g.Forms))
	for _, name := range g.Forms {
		out = append(out, c.byForm[name])
	}
	return out
}

// GroupByKey returns the group persisted under the storage key.
func (c *Catalog) GroupByKey(key string) (*Group, bool) {
	for i := range c.Groups {
		if c.Groups[i].Key == key {
			return &c.Groups[i], true
		}
	}
	return nil, false
}

// ResumeView picks the form of the group a restored record should open in:
// the first form whose resume fields are answered, else the group's first
// form.
func (c *Catalog) ResumeView(g *Group, r Record) string {
	for _, name := range g.Forms {
		for _, f := range c.byForm[name].ResumeWhen {
			if r.Answered(f) {
				return name
			}
		}
	}
	return g.Forms[0]
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := ParseCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("form: embedded catalog: %v", err))
	}
	return c
})

// DefaultCatalog returns the embedded admission/reassessment catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}
