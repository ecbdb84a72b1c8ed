// Package builder holds the state of a form being edited before it becomes a template.
//
// A Form is an immutable snapshot: Reduce never mutates its input and returns a new
// Form for every accepted action. Store serializes dispatches and hands snapshots to
// subscribers.
package builder

import (
	"time"

	"github.com/vnkhanh/audit-server/conditions"
	"github.com/vnkhanh/audit-server/models"
)

const (
	DefaultFormTitle    = "New Form"
	DefaultSectionTitle = "Main Section"
)

type Form struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Section     string    `json:"section_title"`
	Fields      []Field   `json:"fields"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Field struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	HelpText   string            `json:"help_text"`
	Required   bool              `json:"required"`
	Score      *float64          `json:"score,omitempty"`
	Options    []Option          `json:"options"`
	Rules      []conditions.Rule `json:"rules"`
	Validation *Validation       `json:"validation,omitempty"`
}

type Option struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Value string   `json:"value"`
	Score *float64 `json:"score,omitempty"`
}

type Validation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Message string   `json:"message,omitempty"`
}

// IsZero reports whether no form has been created yet.
func (f Form) IsZero() bool {
	return f.ID == ""
}

func (f Form) FieldIndex(id string) int {
	for i := range f.Fields {
		if f.Fields[i].ID == id {
			return i
		}
	}
	return -1
}

// State evaluates the field's rules against answers keyed by field id.
func (f Form) State(fieldID string, answers conditions.Answers) (conditions.State, bool) {
	i := f.FieldIndex(fieldID)
	if i < 0 {
		return conditions.State{}, false
	}
	fd := f.Fields[i]
	return conditions.Evaluate(fd.Rules, answers, fd.Required), true
}

// clone copies every slice so the result shares nothing mutable with f.
func (f Form) clone() Form {
	out := f
	if f.Fields != nil {
		out.Fields = make([]Field, len(f.Fields))
		for i, fd := range f.Fields {
			out.Fields[i] = fd.clone()
		}
	}
	return out
}

func (fd Field) clone() Field {
	out := fd
	out.Score = copyFloat(fd.Score)
	if fd.Options != nil {
		out.Options = make([]Option, len(fd.Options))
		for i, o := range fd.Options {
			o.Score = copyFloat(o.Score)
			out.Options[i] = o
		}
	}
	if fd.Rules != nil {
		out.Rules = append([]conditions.Rule(nil), fd.Rules...)
	}
	if fd.Validation != nil {
		v := *fd.Validation
		v.Min, v.Max = copyFloat(v.Min), copyFloat(v.Max)
		out.Validation = &v
	}
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// defaultOptions gives choice questions two placeholder options to start from.
func defaultOptions(fieldType string, newID func() string) []Option {
	if !models.IsChoiceType(fieldType) {
		return []Option{}
	}
	return []Option{
		{ID: newID(), Text: "Option 1", Value: "option1"},
		{ID: newID(), Text: "Option 2", Value: "option2"},
	}
}
