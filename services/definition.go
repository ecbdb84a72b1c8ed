package services

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/vnkhanh/audit-server/conditions"
	"github.com/vnkhanh/audit-server/models"
)

// TemplateDefinition is the nested payload accepted by Create. Absent order fields
// are filled from the array position.
type TemplateDefinition struct {
	Title          string           `json:"title" binding:"required,min=1"`
	Description    string           `json:"description"`
	ScoringEnabled *bool            `json:"scoring_enabled"`
	MaxScore       *float64         `json:"max_score"`
	PassingScore   *float64         `json:"passing_score"`
	Pages          []PageDefinition `json:"pages" binding:"dive"`
}

type PageDefinition struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Order       *int                `json:"order"`
	Sections    []SectionDefinition `json:"sections" binding:"dive"`
}

type SectionDefinition struct {
	Title        string               `json:"title" binding:"required"`
	Description  string               `json:"description"`
	Order        *int                 `json:"order"`
	IsRepeatable bool                 `json:"is_repeatable"`
	Questions    []QuestionDefinition `json:"questions" binding:"dive"`
}

type QuestionDefinition struct {
	// Key is a client-side handle other questions' conditions can point at.
	Key             string                `json:"key"`
	Text            string                `json:"text" binding:"required"`
	HelpText        string                `json:"help_text"`
	Type            string                `json:"type" binding:"required"`
	IsRequired      bool                  `json:"is_required"`
	Order           *int                  `json:"order"`
	DefaultScore    *float64              `json:"default_score"`
	ValidationRules json.RawMessage       `json:"validation_rules"`
	Options         []OptionDefinition    `json:"options" binding:"dive"`
	Conditions      []ConditionDefinition `json:"conditions" binding:"dive"`
}

type OptionDefinition struct {
	Text  string   `json:"text" binding:"required"`
	Value string   `json:"value"`
	Score *float64 `json:"score"`
	Order *int     `json:"order"`
}

type ConditionDefinition struct {
	TriggerKey string `json:"trigger_key" binding:"required"`
	Operator   string `json:"operator" binding:"required"`
	Value      string `json:"value"`
	Action     string `json:"action" binding:"required"`
}

type rangeRules struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func validateScoring(enabled bool, max, passing *float64) error {
	if max != nil && *max < 0 {
		return invalidf(ErrInvalidDefinition, "max_score must not be negative")
	}
	if passing != nil && *passing < 0 {
		return invalidf(ErrInvalidDefinition, "passing_score must not be negative")
	}
	if enabled && max != nil && passing != nil && *passing > *max {
		return invalidf(ErrInvalidDefinition, "passing_score (%g) exceeds max_score (%g)", *passing, *max)
	}
	return nil
}

func resolveOrder(explicit *int, index int) int {
	if explicit != nil {
		return *explicit
	}
	return index
}

// orderSet reports duplicate order values inside one parent.
type orderSet map[int]bool

func (s orderSet) claim(order int, what string) error {
	if s[order] {
		return invalidf(ErrInvalidDefinition, "duplicate order %d among %s", order, what)
	}
	s[order] = true
	return nil
}

// buildTemplate turns a definition into a fully identified in-memory graph, checking
// every structural invariant before anything touches the database.
func buildTemplate(def TemplateDefinition, creatorID string) (*models.Template, error) {
	if strings.TrimSpace(def.Title) == "" {
		return nil, invalidf(ErrInvalidDefinition, "title is required")
	}
	scoring := true
	if def.ScoringEnabled != nil {
		scoring = *def.ScoringEnabled
	}
	if err := validateScoring(scoring, def.MaxScore, def.PassingScore); err != nil {
		return nil, err
	}

	t := &models.Template{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(def.Title),
		Description:    def.Description,
		IsActive:       true,
		ScoringEnabled: scoring,
		MaxScore:       def.MaxScore,
		PassingScore:   def.PassingScore,
		CreatorID:      creatorID,
		Pages:          make([]models.Page, 0, len(def.Pages)),
	}

	keys := map[string]string{} // question key -> generated id
	type pendingCondition struct {
		questionID string
		def        ConditionDefinition
	}
	var pending []pendingCondition

	pageOrders := orderSet{}
	for pi, pd := range def.Pages {
		page := models.Page{
			ID:          uuid.NewString(),
			TemplateID:  t.ID,
			Title:       pd.Title,
			Description: pd.Description,
			Order:       resolveOrder(pd.Order, pi),
			Sections:    make([]models.Section, 0, len(pd.Sections)),
		}
		if err := pageOrders.claim(page.Order, "pages"); err != nil {
			return nil, err
		}

		sectionOrders := orderSet{}
		for si, sd := range pd.Sections {
			section := models.Section{
				ID:           uuid.NewString(),
				PageID:       page.ID,
				Title:        sd.Title,
				Description:  sd.Description,
				Order:        resolveOrder(sd.Order, si),
				IsRepeatable: sd.IsRepeatable,
				Questions:    make([]models.Question, 0, len(sd.Questions)),
			}
			if err := sectionOrders.claim(section.Order, "sections of page "+pd.Title); err != nil {
				return nil, err
			}

			questionOrders := orderSet{}
			for qi, qd := range sd.Questions {
				q, err := buildQuestion(qd, section.ID, qi)
				if err != nil {
					return nil, err
				}
				if err := questionOrders.claim(q.Order, "questions of section "+sd.Title); err != nil {
					return nil, err
				}
				if qd.Key != "" {
					if _, dup := keys[qd.Key]; dup {
						return nil, invalidf(ErrInvalidDefinition, "duplicate question key %q", qd.Key)
					}
					keys[qd.Key] = q.ID
				}
				for _, cd := range qd.Conditions {
					pending = append(pending, pendingCondition{questionID: q.ID, def: cd})
				}
				section.Questions = append(section.Questions, q)
			}
			page.Sections = append(page.Sections, section)
		}
		t.Pages = append(t.Pages, page)
	}

	// Conditions may point forward, so triggers resolve once every key is known.
	for _, pc := range pending {
		triggerID, ok := keys[pc.def.TriggerKey]
		if !ok {
			return nil, invalidf(ErrInvalidDefinition, "condition trigger %q does not match any question key", pc.def.TriggerKey)
		}
		if triggerID == pc.questionID {
			return nil, invalidf(ErrInvalidDefinition, "question %q cannot be its own trigger", pc.def.TriggerKey)
		}
		if !conditions.ValidOperator(pc.def.Operator) {
			return nil, invalidf(ErrInvalidDefinition, "unknown condition operator %q", pc.def.Operator)
		}
		if !conditions.ValidAction(pc.def.Action) {
			return nil, invalidf(ErrInvalidDefinition, "unknown condition action %q", pc.def.Action)
		}
		q := findQuestion(t, pc.questionID)
		q.Conditions = append(q.Conditions, models.QuestionCondition{
			ID:                uuid.NewString(),
			QuestionID:        pc.questionID,
			TriggerQuestionID: triggerID,
			Operator:          pc.def.Operator,
			Value:             pc.def.Value,
			Action:            pc.def.Action,
		})
	}
	return t, nil
}

func buildQuestion(qd QuestionDefinition, sectionID string, index int) (models.Question, error) {
	qType := strings.ToUpper(strings.TrimSpace(qd.Type))
	if !models.IsQuestionType(qType) {
		return models.Question{}, invalidf(ErrInvalidDefinition, "unknown question type %q", qd.Type)
	}
	if models.IsChoiceType(qType) && len(qd.Options) == 0 {
		return models.Question{}, invalidf(ErrInvalidDefinition, "%s question %q needs at least one option", qType, qd.Text)
	}
	if !models.IsChoiceType(qType) && len(qd.Options) > 0 {
		return models.Question{}, invalidf(ErrInvalidDefinition, "%s question %q cannot have options", qType, qd.Text)
	}

	var rules datatypes.JSON
	if len(qd.ValidationRules) > 0 && string(qd.ValidationRules) != "null" {
		if !json.Valid(qd.ValidationRules) {
			return models.Question{}, invalidf(ErrInvalidDefinition, "validation_rules of %q is not valid JSON", qd.Text)
		}
		if qType == models.QuestionSlider || qType == models.QuestionNumber {
			var r rangeRules
			if err := json.Unmarshal(qd.ValidationRules, &r); err != nil {
				return models.Question{}, invalidf(ErrInvalidDefinition, "validation_rules of %q must be {min,max}", qd.Text)
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return models.Question{}, invalidf(ErrInvalidDefinition, "validation_rules of %q: min > max", qd.Text)
			}
		}
		rules = datatypes.JSON(qd.ValidationRules)
	}

	q := models.Question{
		ID:              uuid.NewString(),
		SectionID:       sectionID,
		Text:            qd.Text,
		HelpText:        qd.HelpText,
		Type:            qType,
		IsRequired:      qd.IsRequired,
		Order:           resolveOrder(qd.Order, index),
		DefaultScore:    qd.DefaultScore,
		ValidationRules: rules,
		Options:         make([]models.Option, 0, len(qd.Options)),
	}

	optionOrders := orderSet{}
	for oi, od := range qd.Options {
		opt := models.Option{
			ID:         uuid.NewString(),
			QuestionID: q.ID,
			Text:       od.Text,
			Value:      od.Value,
			Score:      od.Score,
			Order:      resolveOrder(od.Order, oi),
		}
		if err := optionOrders.claim(opt.Order, "options of "+qd.Text); err != nil {
			return models.Question{}, err
		}
		q.Options = append(q.Options, opt)
	}
	return q, nil
}

func findQuestion(t *models.Template, id string) *models.Question {
	for _, q := range t.Questions() {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// cloneTemplate copies content fields into a graph with fresh ids at every level.
func cloneTemplate(src *models.Template, ownerID string) *models.Template {
	ids := map[string]string{} // old question id -> new question id
	t := &models.Template{
		ID:             uuid.NewString(),
		Title:          src.Title + " (Copy)",
		Description:    src.Description,
		IsActive:       src.IsActive,
		ScoringEnabled: src.ScoringEnabled,
		MaxScore:       copyFloat(src.MaxScore),
		PassingScore:   copyFloat(src.PassingScore),
		CreatorID:      ownerID,
		Pages:          make([]models.Page, 0, len(src.Pages)),
	}
	for _, sp := range src.Pages {
		page := models.Page{
			ID:          uuid.NewString(),
			TemplateID:  t.ID,
			Title:       sp.Title,
			Description: sp.Description,
			Order:       sp.Order,
			Sections:    make([]models.Section, 0, len(sp.Sections)),
		}
		for _, ss := range sp.Sections {
			section := models.Section{
				ID:           uuid.NewString(),
				PageID:       page.ID,
				Title:        ss.Title,
				Description:  ss.Description,
				Order:        ss.Order,
				IsRepeatable: ss.IsRepeatable,
				Questions:    make([]models.Question, 0, len(ss.Questions)),
			}
			for _, sq := range ss.Questions {
				q := models.Question{
					ID:           uuid.NewString(),
					SectionID:    section.ID,
					Text:         sq.Text,
					HelpText:     sq.HelpText,
					Type:         sq.Type,
					IsRequired:   sq.IsRequired,
					Order:        sq.Order,
					DefaultScore: copyFloat(sq.DefaultScore),
					Options:      make([]models.Option, 0, len(sq.Options)),
				}
				if len(sq.ValidationRules) > 0 {
					q.ValidationRules = append(datatypes.JSON(nil), sq.ValidationRules...)
				}
				ids[sq.ID] = q.ID
				for _, so := range sq.Options {
					q.Options = append(q.Options, models.Option{
						ID:         uuid.NewString(),
						QuestionID: q.ID,
						Text:       so.Text,
						Value:      so.Value,
						Score:      copyFloat(so.Score),
						Order:      so.Order,
					})
				}
				section.Questions = append(section.Questions, q)
			}
			page.Sections = append(page.Sections, section)
		}
		t.Pages = append(t.Pages, page)
	}

	// Second pass: conditions point at questions by id, so remap both ends.
	for _, sq := range src.Questions() {
		for _, sc := range sq.Conditions {
			trigger, ok := ids[sc.TriggerQuestionID]
			if !ok {
				continue
			}
			q := findQuestion(t, ids[sq.ID])
			q.Conditions = append(q.Conditions, models.QuestionCondition{
				ID:                uuid.NewString(),
				QuestionID:        q.ID,
				TriggerQuestionID: trigger,
				Operator:          sc.Operator,
				Value:             sc.Value,
				Action:            sc.Action,
			})
		}
	}
	return t
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
