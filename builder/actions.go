package builder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vnkhanh/audit-server/conditions"
	"github.com/vnkhanh/audit-server/models"
)

var (
	ErrNoForm          = errors.New("no form is being edited")
	ErrFieldNotFound   = errors.New("field not found")
	ErrInvalidType     = errors.New("unknown question type")
	ErrIndexOutOfRange = errors.New("field index out of range")
	ErrInvalidRule     = errors.New("invalid conditional rule")
)

// Action is one of the transitions Reduce understands.
type Action interface {
	isAction()
}

type CreateForm struct {
	Title string
}

type SetTitle struct {
	Title string
}

// AddQuestion appends a field of the given type. On an empty state it starts a form first.
type AddQuestion struct {
	Type string
}

type UpdateQuestion struct {
	FieldID string
	Patch   FieldPatch
}

// FieldPatch lists the field properties an update may change. Nil means untouched.
type FieldPatch struct {
	Type       *string     `json:"type"`
	Label      *string     `json:"label"`
	HelpText   *string     `json:"help_text"`
	Required   *bool       `json:"required"`
	Score      *float64    `json:"score"`
	Options    *[]Option   `json:"options"`
	Validation *Validation `json:"validation"`
}

type RemoveQuestion struct {
	FieldID string
}

// MoveField removes the field at From and inserts it at To.
type MoveField struct {
	From, To int
}

type SetRules struct {
	FieldID string
	Rules   []conditions.Rule
}

func (CreateForm) isAction()     {}
func (SetTitle) isAction()       {}
func (AddQuestion) isAction()    {}
func (UpdateQuestion) isAction() {}
func (RemoveQuestion) isAction() {}
func (MoveField) isAction()      {}
func (SetRules) isAction()       {}

var newID = uuid.NewString

// Reduce applies action to form and returns the next snapshot stamped with now.
// form itself is left untouched; on error the zero Form is returned.
func Reduce(form Form, action Action, now time.Time) (Form, error) {
	if _, ok := action.(CreateForm); !ok {
		if _, ok := action.(AddQuestion); !ok && form.IsZero() {
			return Form{}, ErrNoForm
		}
	}

	next := form.clone()
	switch a := action.(type) {
	case CreateForm:
		title := strings.TrimSpace(a.Title)
		if title == "" {
			title = DefaultFormTitle
		}
		next = Form{
			ID:        newID(),
			Title:     title,
			Section:   DefaultSectionTitle,
			Fields:    []Field{},
			CreatedAt: now,
		}

	case SetTitle:
		next.Title = a.Title

	case AddQuestion:
		if !models.IsQuestionType(a.Type) {
			return Form{}, fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
		}
		if next.IsZero() {
			created, err := Reduce(Form{}, CreateForm{}, now)
			if err != nil {
				return Form{}, err
			}
			next = created
		}
		next.Fields = append(next.Fields, Field{
			ID:      newID(),
			Type:    a.Type,
			Label:   "New " + strings.ToLower(strings.ReplaceAll(a.Type, "_", " ")) + " question",
			Options: defaultOptions(a.Type, newID),
			Rules:   []conditions.Rule{},
		})

	case UpdateQuestion:
		i := next.FieldIndex(a.FieldID)
		if i < 0 {
			return Form{}, fmt.Errorf("%w: %s", ErrFieldNotFound, a.FieldID)
		}
		if err := a.Patch.apply(&next.Fields[i]); err != nil {
			return Form{}, err
		}

	case RemoveQuestion:
		i := next.FieldIndex(a.FieldID)
		if i < 0 {
			return Form{}, fmt.Errorf("%w: %s", ErrFieldNotFound, a.FieldID)
		}
		next.Fields = append(next.Fields[:i], next.Fields[i+1:]...)
		// Rules pointing at the removed field can never fire again.
		for fi := range next.Fields {
			kept := next.Fields[fi].Rules[:0]
			for _, r := range next.Fields[fi].Rules {
				if r.TriggerID != a.FieldID {
					kept = append(kept, r)
				}
			}
			next.Fields[fi].Rules = kept
		}

	case MoveField:
		n := len(next.Fields)
		if a.From < 0 || a.From >= n || a.To < 0 || a.To >= n {
			return Form{}, fmt.Errorf("%w: %d -> %d (have %d)", ErrIndexOutOfRange, a.From, a.To, n)
		}
		moved := next.Fields[a.From]
		rest := append(next.Fields[:a.From:a.From], next.Fields[a.From+1:]...)
		fields := make([]Field, 0, n)
		fields = append(fields, rest[:a.To]...)
		fields = append(fields, moved)
		fields = append(fields, rest[a.To:]...)
		next.Fields = fields

	case SetRules:
		i := next.FieldIndex(a.FieldID)
		if i < 0 {
			return Form{}, fmt.Errorf("%w: %s", ErrFieldNotFound, a.FieldID)
		}
		for _, r := range a.Rules {
			if err := validateRule(next, a.FieldID, r); err != nil {
				return Form{}, err
			}
		}
		next.Fields[i].Rules = append([]conditions.Rule{}, a.Rules...)

	default:
		return Form{}, fmt.Errorf("unsupported action %T", action)
	}

	next.UpdatedAt = now
	return next, nil
}

func (p FieldPatch) apply(fd *Field) error {
	if p.Type != nil {
		if !models.IsQuestionType(*p.Type) {
			return fmt.Errorf("%w: %q", ErrInvalidType, *p.Type)
		}
		if models.IsChoiceType(*p.Type) && !models.IsChoiceType(fd.Type) && p.Options == nil {
			fd.Options = defaultOptions(*p.Type, newID)
		}
		if !models.IsChoiceType(*p.Type) {
			fd.Options = []Option{}
		}
		fd.Type = *p.Type
	}
	if p.Label != nil {
		fd.Label = *p.Label
	}
	if p.HelpText != nil {
		fd.HelpText = *p.HelpText
	}
	if p.Required != nil {
		fd.Required = *p.Required
	}
	if p.Score != nil {
		fd.Score = copyFloat(p.Score)
	}
	if p.Options != nil && models.IsChoiceType(fd.Type) {
		opts := make([]Option, len(*p.Options))
		for i, o := range *p.Options {
			if o.ID == "" {
				o.ID = newID()
			}
			o.Score = copyFloat(o.Score)
			opts[i] = o
		}
		fd.Options = opts
	}
	if p.Validation != nil {
		v := *p.Validation
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			return fmt.Errorf("validation min %v is greater than max %v", *v.Min, *v.Max)
		}
		v.Min, v.Max = copyFloat(v.Min), copyFloat(v.Max)
		fd.Validation = &v
	}
	return nil
}

func validateRule(f Form, target string, r conditions.Rule) error {
	if !conditions.ValidOperator(string(r.Operator)) {
		return fmt.Errorf("%w: operator %q", ErrInvalidRule, r.Operator)
	}
	if !conditions.ValidAction(string(r.Action)) {
		return fmt.Errorf("%w: action %q", ErrInvalidRule, r.Action)
	}
	if r.TriggerID == target {
		return fmt.Errorf("%w: field %s cannot trigger itself", ErrInvalidRule, target)
	}
	if f.FieldIndex(r.TriggerID) < 0 {
		return fmt.Errorf("%w: trigger %s is not a field of this form", ErrInvalidRule, r.TriggerID)
	}
	return nil
}
