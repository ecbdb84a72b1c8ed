package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vnkhanh/audit-server/conditions"
	"github.com/vnkhanh/audit-server/models"
)

type InspectionService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewInspectionService(db *gorm.DB) *InspectionService {
	return &InspectionService{db: db, now: time.Now}
}

type FileInput struct {
	Filename string `json:"filename" binding:"required"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size" binding:"min=0"`
	URL      string `json:"url" binding:"required"`
}

type AnswerInput struct {
	QuestionID      string      `json:"question_id" binding:"required"`
	OptionID        *string     `json:"option_id"`
	Value           string      `json:"value"`
	SectionInstance int         `json:"section_instance" binding:"min=0"`
	Files           []FileInput `json:"files" binding:"dive"`
}

// transitions lists the single forward step allowed out of each status.
var transitions = map[string]string{
	models.StatusDraft:      models.StatusInProgress,
	models.StatusInProgress: models.StatusCompleted,
	models.StatusCompleted:  models.StatusArchived,
}

func CanTransition(from, to string) bool {
	return transitions[from] == to
}

func (s *InspectionService) Create(ctx context.Context, templateID, conductorID, title string) (*models.Inspection, error) {
	db := s.db.WithContext(ctx)

	var t models.Template
	err := db.Select("id", "title").First(&t, "id = ?", templateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := ensureUser(db, conductorID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(title) == "" {
		title = t.Title
	}
	ins := models.Inspection{
		Title:       title,
		TemplateID:  templateID,
		ConductorID: conductorID,
		Status:      models.StatusDraft,
	}
	if err := db.Create(&ins).Error; err != nil {
		return nil, err
	}

	var out models.Inspection
	if err := db.Preload("Template").Preload("Conductor").First(&out, "id = ?", ins.ID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns every inspection newest first with a minimal template projection.
func (s *InspectionService) List(ctx context.Context) ([]models.Inspection, error) {
	var rows []models.Inspection
	err := s.db.WithContext(ctx).
		Preload("Template", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Preload("Conductor").
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func loadInspection(db *gorm.DB, id string) (*models.Inspection, error) {
	var ins models.Inspection
	err := db.
		Preload("Conductor").
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("section_instance ASC, created_at ASC") }).
		Preload("Answers.Question").
		Preload("Answers.Option").
		Preload("Answers.Files").
		First(&ins, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInspectionNotFound
	}
	if err != nil {
		return nil, err
	}

	tree, err := loadTree(db, ins.TemplateID)
	if err != nil {
		return nil, err
	}
	ins.Template = tree
	return &ins, nil
}

// Get returns the inspection with its full ordered template tree and expanded answers.
func (s *InspectionService) Get(ctx context.Context, id string) (*models.Inspection, error) {
	return loadInspection(s.db.WithContext(ctx), id)
}

type slot struct {
	questionID string
	instance   int
}

type pick struct {
	slot
	optionID string
}

// checkNumeric rejects NUMBER and SLIDER values that do not parse or fall outside the
// question's validation_rules. An empty value leaves the question unanswered.
func checkNumeric(q *models.Question, value string) error {
	if q.Type != models.QuestionNumber && q.Type != models.QuestionSlider {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return invalidf(ErrInvalidAnswer, "question %s expects a number, got %q", q.ID, value)
	}

	var r rangeRules
	if len(q.ValidationRules) > 0 && string(q.ValidationRules) != "null" {
		if err := json.Unmarshal(q.ValidationRules, &r); err != nil {
			return fmt.Errorf("validation_rules of question %s: %w", q.ID, err)
		}
	}
	if r.Min != nil && n < *r.Min {
		return invalidf(ErrInvalidAnswer, "question %s: %v is below the minimum %v", q.ID, n, *r.Min)
	}
	if r.Max != nil && n > *r.Max {
		return invalidf(ErrInvalidAnswer, "question %s: %v is above the maximum %v", q.ID, n, *r.Max)
	}
	return nil
}

// SubmitAnswers records answers, replacing whatever was stored before for the same
// question and section instance. The first answers start a draft inspection.
func (s *InspectionService) SubmitAnswers(ctx context.Context, id string, inputs []AnswerInput) (*models.Inspection, error) {
	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		var ins models.Inspection
		err := tx.First(&ins, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInspectionNotFound
		}
		if err != nil {
			return err
		}
		if ins.Status == models.StatusCompleted || ins.Status == models.StatusArchived {
			return fmt.Errorf("%w: status %s", ErrInspectionLocked, ins.Status)
		}

		tree, err := loadTree(tx, ins.TemplateID)
		if err != nil {
			return err
		}
		questions := map[string]*models.Question{}
		for _, q := range tree.Questions() {
			questions[q.ID] = q
		}

		answers := make([]models.Answer, 0, len(inputs))
		perSlot := map[slot]int{}
		picked := map[pick]bool{}
		for _, in := range inputs {
			q, ok := questions[in.QuestionID]
			if !ok {
				return invalidf(ErrInvalidAnswer, "question %s is not part of template %s", in.QuestionID, tree.ID)
			}
			if in.SectionInstance < 0 {
				return invalidf(ErrInvalidAnswer, "section_instance must be >= 0")
			}
			if in.SectionInstance > 0 && !tree.SectionOf(q.ID).IsRepeatable {
				return invalidf(ErrInvalidAnswer, "question %s is in a section that does not repeat", q.ID)
			}
			if models.IsChoiceType(q.Type) {
				if in.OptionID == nil || q.OptionByID(*in.OptionID) == nil {
					return invalidf(ErrInvalidAnswer, "question %s needs one of its own options", q.ID)
				}
			} else if in.OptionID != nil {
				return invalidf(ErrInvalidAnswer, "question %s does not take options", q.ID)
			}
			if err := checkNumeric(q, in.Value); err != nil {
				return err
			}

			key := slot{q.ID, in.SectionInstance}
			perSlot[key]++
			if q.Type != models.QuestionSelectMultiple && perSlot[key] > 1 {
				return invalidf(ErrInvalidAnswer, "question %s answered twice for instance %d", q.ID, in.SectionInstance)
			}
			if in.OptionID != nil {
				p := pick{key, *in.OptionID}
				if picked[p] {
					return invalidf(ErrInvalidAnswer, "option %s picked twice for question %s instance %d", *in.OptionID, q.ID, in.SectionInstance)
				}
				picked[p] = true
			}

			a := models.Answer{
				InspectionID:    ins.ID,
				QuestionID:      q.ID,
				SectionInstance: in.SectionInstance,
				OptionID:        in.OptionID,
				Value:           in.Value,
			}
			if in.OptionID != nil && in.Value == "" {
				a.Value = q.OptionByID(*in.OptionID).Value
			}
			for _, fi := range in.Files {
				a.Files = append(a.Files, models.File{Filename: fi.Filename, MimeType: fi.MimeType, Size: fi.Size, URL: fi.URL})
			}
			score := AnswerScore(q, &a)
			a.Score = &score
			answers = append(answers, a)
		}

		for key := range perSlot {
			var old []string
			if err := tx.Model(&models.Answer{}).
				Where("inspection_id = ? AND question_id = ? AND section_instance = ?", ins.ID, key.questionID, key.instance).
				Pluck("id", &old).Error; err != nil {
				return err
			}
			if len(old) == 0 {
				continue
			}
			if err := tx.Where("answer_id IN ?", old).Delete(&models.File{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", old).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
		}

		if len(answers) > 0 {
			// Answer.Files is a has-many, so gorm inserts the file rows with their answer.
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}

		if ins.Status == models.StatusDraft && len(answers) > 0 {
			now := s.now()
			if err := tx.Model(&ins).Updates(map[string]interface{}{
				"status":     models.StatusInProgress,
				"started_at": now,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loadInspection(db, id)
}

// MissingRequired lists required questions that are visible under the current answers
// yet have no answer in any section instance.
func MissingRequired(t *models.Template, answers []models.Answer) []string {
	given := conditions.Answers{}
	answeredQ := map[string]bool{}
	questions := map[string]*models.Question{}
	for _, q := range t.Questions() {
		questions[q.ID] = q
	}
	for i := range answers {
		a := &answers[i]
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		if a.OptionID != nil || answered(q, a) {
			answeredQ[a.QuestionID] = true
		}
		if v := strings.TrimSpace(a.Value); v != "" {
			given[a.QuestionID] = append(given[a.QuestionID], v)
		}
	}

	var missing []string
	for _, q := range t.Questions() {
		rules := make([]conditions.Rule, 0, len(q.Conditions))
		for _, c := range q.Conditions {
			rules = append(rules, conditions.Rule{
				TriggerID: c.TriggerQuestionID,
				Operator:  conditions.Operator(c.Operator),
				Value:     c.Value,
				Action:    conditions.Action(c.Action),
			})
		}
		state := conditions.Evaluate(rules, given, q.IsRequired)
		if state.Visible && state.Required && !answeredQ[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

// Transition moves the inspection one step forward. Completing requires every visible
// required question to be answered and stores the final score.
func (s *InspectionService) Transition(ctx context.Context, id, status string) (*models.Inspection, error) {
	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		ins, err := loadInspection(tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(ins.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ins.Status, status)
		}

		now := s.now()
		updates := map[string]interface{}{"status": status}
		switch status {
		case models.StatusInProgress:
			if ins.StartedAt == nil {
				updates["started_at"] = now
			}
		case models.StatusCompleted:
			if missing := MissingRequired(ins.Template, ins.Answers); len(missing) > 0 {
				return fmt.Errorf("%w: required questions unanswered: %s", ErrInvalidTransition, strings.Join(missing, ", "))
			}
			res := CalculateScore(ins.Template, ins.Answers)
			updates["completed_at"] = now
			if res.ScoringEnabled {
				updates["score"] = res.Total
				updates["max_score"] = res.Max
				updates["percentage"] = res.Percentage
				if res.Passed != nil {
					updates["passed"] = *res.Passed
				}
			}
		}
		return tx.Model(&models.Inspection{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return loadInspection(db, id)
}

func (s *InspectionService) Score(ctx context.Context, id string) (ScoreResult, error) {
	ins, err := loadInspection(s.db.WithContext(ctx), id)
	if err != nil {
		return ScoreResult{}, err
	}
	return CalculateScore(ins.Template, ins.Answers), nil
}

func (s *InspectionService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Inspection{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrInspectionNotFound
		}

		var answerIDs []string
		if err := tx.Model(&models.Answer{}).Where("inspection_id = ?", id).Pluck("id", &answerIDs).Error; err != nil {
			return err
		}
		if len(answerIDs) > 0 {
			if err := tx.Where("answer_id IN ?", answerIDs).Delete(&models.File{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", answerIDs).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Inspection{}, "id = ?", id).Error
	})
}
