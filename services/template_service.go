package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/audit-server/models"
)

type TemplateService struct {
	db *gorm.DB
}

func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// TemplateListItem is a listing row: the template without its tree plus how many
// inspections reference it.
type TemplateListItem struct {
	models.Template
	InspectionCount int64
}

type TemplateFilter struct {
	IncludeArchived bool
	CreatorID       string
}

// TemplatePatch carries the scalar fields Update may change. Nil means untouched;
// the clear flags reset a score back to null.
type TemplatePatch struct {
	Title             *string  `json:"title"`
	Description       *string  `json:"description"`
	ScoringEnabled    *bool    `json:"scoring_enabled"`
	MaxScore          *float64 `json:"max_score"`
	PassingScore      *float64 `json:"passing_score"`
	ClearMaxScore     bool     `json:"clear_max_score"`
	ClearPassingScore bool     `json:"clear_passing_score"`
}

func byOrder(db *gorm.DB) *gorm.DB {
	return db.Order("order_index ASC")
}

// loadTree reads one template with every level ordered ascending by its order field.
func loadTree(db *gorm.DB, id string) (*models.Template, error) {
	var t models.Template
	err := db.
		Preload("Creator").
		Preload("Pages", byOrder).
		Preload("Pages.Sections", byOrder).
		Preload("Pages.Sections.Questions", byOrder).
		Preload("Pages.Sections.Questions.Options", byOrder).
		Preload("Pages.Sections.Questions.Conditions").
		First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// insertTree writes a prepared graph level by level inside tx.
func insertTree(tx *gorm.DB, t *models.Template) error {
	if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	var (
		pages      []*models.Page
		sections   []*models.Section
		questions  []*models.Question
		options    []*models.Option
		conditions []*models.QuestionCondition
	)
	for pi := range t.Pages {
		p := &t.Pages[pi]
		p.TemplateID = t.ID
		pages = append(pages, p)
		for si := range p.Sections {
			s := &p.Sections[si]
			s.PageID = p.ID
			sections = append(sections, s)
			for qi := range s.Questions {
				q := &s.Questions[qi]
				q.SectionID = s.ID
				questions = append(questions, q)
				for oi := range q.Options {
					q.Options[oi].QuestionID = q.ID
					options = append(options, &q.Options[oi])
				}
				for ci := range q.Conditions {
					q.Conditions[ci].QuestionID = q.ID
					conditions = append(conditions, &q.Conditions[ci])
				}
			}
		}
	}

	if len(pages) > 0 {
		if err := tx.Omit(clause.Associations).Create(&pages).Error; err != nil {
			return fmt.Errorf("insert pages: %w", err)
		}
	}
	if len(sections) > 0 {
		if err := tx.Omit(clause.Associations).Create(&sections).Error; err != nil {
			return fmt.Errorf("insert sections: %w", err)
		}
	}
	if len(questions) > 0 {
		if err := tx.Omit(clause.Associations).Create(&questions).Error; err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
	}
	if len(options) > 0 {
		if err := tx.Omit(clause.Associations).Create(&options).Error; err != nil {
			return fmt.Errorf("insert options: %w", err)
		}
	}
	if len(conditions) > 0 {
		if err := tx.Omit(clause.Associations).Create(&conditions).Error; err != nil {
			return fmt.Errorf("insert conditions: %w", err)
		}
	}
	return nil
}

func ensureUser(db *gorm.DB, id string) error {
	var n int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Create persists the whole tree in one transaction and returns it re-read from storage.
func (s *TemplateService) Create(ctx context.Context, def TemplateDefinition, creatorID string) (*models.Template, error) {
	t, err := buildTemplate(def, creatorID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, creatorID); err != nil {
			return err
		}
		return insertTree(tx, t)
	})
	if err != nil {
		return nil, err
	}
	return loadTree(db, t.ID)
}

func (s *TemplateService) List(ctx context.Context, filter TemplateFilter) ([]TemplateListItem, error) {
	db := s.db.WithContext(ctx)

	q := db.Model(&models.Template{}).Preload("Creator")
	if !filter.IncludeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if filter.CreatorID != "" {
		q = q.Where("creator_id = ?", filter.CreatorID)
	}

	var rows []models.Template
	if err := q.Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]TemplateListItem, 0, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var counts []struct {
		TemplateID string
		Count      int64
	}
	if err := db.Model(&models.Inspection{}).
		Select("template_id, COUNT(*) AS count").
		Where("template_id IN ?", ids).
		Group("template_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byTemplate := make(map[string]int64, len(counts))
	for _, c := range counts {
		byTemplate[c.TemplateID] = c.Count
	}

	for _, r := range rows {
		items = append(items, TemplateListItem{Template: r, InspectionCount: byTemplate[r.ID]})
	}
	return items, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	return loadTree(s.db.WithContext(ctx), id)
}

func (s *TemplateService) find(db *gorm.DB, id string) (*models.Template, error) {
	var t models.Template
	err := db.First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update patches template-level scalars only; pages and below are never touched.
func (s *TemplateService) Update(ctx context.Context, id string, patch TemplatePatch) (*models.Template, error) {
	db := s.db.WithContext(ctx)
	t, err := s.find(db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, invalidf(ErrInvalidDefinition, "title must not be empty")
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}

	scoring, max, passing := t.ScoringEnabled, t.MaxScore, t.PassingScore
	if patch.ScoringEnabled != nil {
		scoring = *patch.ScoringEnabled
		updates["scoring_enabled"] = scoring
	}
	if patch.ClearMaxScore && patch.MaxScore != nil {
		return nil, invalidf(ErrInvalidDefinition, "max_score cannot be set and cleared at once")
	}
	if patch.ClearPassingScore && patch.PassingScore != nil {
		return nil, invalidf(ErrInvalidDefinition, "passing_score cannot be set and cleared at once")
	}
	switch {
	case patch.ClearMaxScore:
		max = nil
		updates["max_score"] = nil
	case patch.MaxScore != nil:
		max = patch.MaxScore
		updates["max_score"] = *patch.MaxScore
	}
	switch {
	case patch.ClearPassingScore:
		passing = nil
		updates["passing_score"] = nil
	case patch.PassingScore != nil:
		passing = patch.PassingScore
		updates["passing_score"] = *patch.PassingScore
	}
	if err := validateScoring(scoring, max, passing); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := db.Model(t).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	var out models.Template
	if err := db.Preload("Creator").First(&out, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// Duplicate deep-copies the tree rooted at id under a new owner, with fresh ids everywhere.
func (s *TemplateService) Duplicate(ctx context.Context, id, ownerID string) (*models.Template, error) {
	db := s.db.WithContext(ctx)
	src, err := loadTree(db, id)
	if err != nil {
		return nil, err
	}
	clone := cloneTemplate(src, ownerID)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, ownerID); err != nil {
			return err
		}
		return insertTree(tx, clone)
	})
	if err != nil {
		return nil, err
	}
	return loadTree(db, clone.ID)
}

func (s *TemplateService) setArchived(ctx context.Context, id string, archived bool) (*models.Template, error) {
	db := s.db.WithContext(ctx)
	t, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	if t.IsArchived != archived {
		if err := db.Model(t).Update("is_archived", archived).Error; err != nil {
			return nil, err
		}
	}
	return s.find(db, id)
}

// Archive hides the template from default listings. Calling it again is a no-op.
func (s *TemplateService) Archive(ctx context.Context, id string) (*models.Template, error) {
	return s.setArchived(ctx, id, true)
}

func (s *TemplateService) Restore(ctx context.Context, id string) (*models.Template, error) {
	return s.setArchived(ctx, id, false)
}

// Delete removes the template and everything it owns. Templates that inspections
// still reference are refused.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.find(tx, id); err != nil {
			return err
		}

		var inUse int64
		if err := tx.Model(&models.Inspection{}).Where("template_id = ?", id).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return fmt.Errorf("%w (%d)", ErrTemplateInUse, inUse)
		}

		var pageIDs, sectionIDs, questionIDs []string
		if err := tx.Model(&models.Page{}).Where("template_id = ?", id).Pluck("id", &pageIDs).Error; err != nil {
			return err
		}
		if len(pageIDs) > 0 {
			if err := tx.Model(&models.Section{}).Where("page_id IN ?", pageIDs).Pluck("id", &sectionIDs).Error; err != nil {
				return err
			}
		}
		if len(sectionIDs) > 0 {
			if err := tx.Model(&models.Question{}).Where("section_id IN ?", sectionIDs).Pluck("id", &questionIDs).Error; err != nil {
				return err
			}
		}

		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ? OR trigger_question_id IN ?", questionIDs, questionIDs).
				Delete(&models.QuestionCondition{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", questionIDs).Delete(&models.Question{}).Error; err != nil {
				return err
			}
		}
		if len(sectionIDs) > 0 {
			if err := tx.Where("id IN ?", sectionIDs).Delete(&models.Section{}).Error; err != nil {
				return err
			}
		}
		if len(pageIDs) > 0 {
			if err := tx.Where("id IN ?", pageIDs).Delete(&models.Page{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Template{}, "id = ?", id).Error
	})
}
