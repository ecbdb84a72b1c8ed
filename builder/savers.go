package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vnkhanh/audit-server/services"
)

// FileSaver keeps forms as JSON files named after the form id.
type FileSaver struct {
	Dir string
}

func (s FileSaver) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

func (s FileSaver) Save(ctx context.Context, f Form) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.Dir, f.ID+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	dst := s.path(f.ID)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return dst, nil
}

func (s FileSaver) Load(id string) (Form, error) {
	return LoadFile(s.path(id))
}

// LoadFile reads a form previously written by FileSaver.
func LoadFile(path string) (Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Form{}, err
	}
	var f Form
	if err := json.Unmarshal(data, &f); err != nil {
		return Form{}, fmt.Errorf("decode form %s: %w", path, err)
	}
	if f.IsZero() {
		return Form{}, fmt.Errorf("form file %s has no id", path)
	}
	return f, nil
}

// TemplateSaver turns the form into a template owned by CreatorID.
type TemplateSaver struct {
	Templates *services.TemplateService
	CreatorID string
}

func (s TemplateSaver) Save(ctx context.Context, f Form) (string, error) {
	if s.Templates == nil {
		return "", errors.New("template service not configured")
	}
	def, err := Definition(f)
	if err != nil {
		return "", err
	}
	t, err := s.Templates.Create(ctx, def, s.CreatorID)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// Definition maps the form onto a one-page, one-section template definition. Field ids
// become question keys so rules survive as conditions.
func Definition(f Form) (services.TemplateDefinition, error) {
	section := strings.TrimSpace(f.Section)
	if section == "" {
		section = DefaultSectionTitle
	}

	questions := make([]services.QuestionDefinition, 0, len(f.Fields))
	for _, fd := range f.Fields {
		q := services.QuestionDefinition{
			Key:          fd.ID,
			Text:         fd.Label,
			HelpText:     fd.HelpText,
			Type:         fd.Type,
			IsRequired:   fd.Required,
			DefaultScore: copyFloat(fd.Score),
		}
		if fd.Validation != nil {
			raw, err := json.Marshal(fd.Validation)
			if err != nil {
				return services.TemplateDefinition{}, err
			}
			q.ValidationRules = raw
		}
		for _, o := range fd.Options {
			q.Options = append(q.Options, services.OptionDefinition{
				Text:  o.Text,
				Value: o.Value,
				Score: copyFloat(o.Score),
			})
		}
		for _, r := range fd.Rules {
			q.Conditions = append(q.Conditions, services.ConditionDefinition{
				TriggerKey: r.TriggerID,
				Operator:   string(r.Operator),
				Value:      r.Value,
				Action:     string(r.Action),
			})
		}
		questions = append(questions, q)
	}

	return services.TemplateDefinition{
		Title:       f.Title,
		Description: f.Description,
		Pages: []services.PageDefinition{{
			Title: f.Title,
			Sections: []services.SectionDefinition{{
				Title:     section,
				Questions: questions,
			}},
		}},
	}, nil
}
