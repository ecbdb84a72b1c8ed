package models

import (
	"time"

	"gorm.io/gorm"
)

type Template struct {
	ID             string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Title          string    `gorm:"column:title;size:255;not null" json:"title"`
	Description    string    `gorm:"column:description;type:text" json:"description"`
	IsActive       bool      `gorm:"column:is_active;not null" json:"is_active"`
	IsArchived     bool      `gorm:"column:is_archived;not null;default:false;index" json:"is_archived"`
	ScoringEnabled bool      `gorm:"column:scoring_enabled;not null" json:"scoring_enabled"`
	MaxScore       *float64  `gorm:"column:max_score" json:"max_score"`
	PassingScore   *float64  `gorm:"column:passing_score" json:"passing_score"`
	CreatorID      string    `gorm:"column:creator_id;size:36;not null;index" json:"creator_id"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Creator *User  `gorm:"foreignKey:CreatorID;references:ID" json:"-"`
	Pages   []Page `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"pages"`
}

func (Template) TableName() string {
	return "templates"
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Questions flattens the tree in page, section, question order.
func (t *Template) Questions() []*Question {
	var out []*Question
	for pi := range t.Pages {
		for si := range t.Pages[pi].Sections {
			s := &t.Pages[pi].Sections[si]
			for qi := range s.Questions {
				out = append(out, &s.Questions[qi])
			}
		}
	}
	return out
}

// SectionOf returns the section that owns the question, nil when it is not part of the tree.
func (t *Template) SectionOf(questionID string) *Section {
	for pi := range t.Pages {
		for si := range t.Pages[pi].Sections {
			s := &t.Pages[pi].Sections[si]
			for _, q := range s.Questions {
				if q.ID == questionID {
					return s
				}
			}
		}
	}
	return nil
}

type Page struct {
	ID          string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	TemplateID  string    `gorm:"column:template_id;size:36;not null;uniqueIndex:idx_pages_template_order,priority:1" json:"template_id"`
	Title       string    `gorm:"column:title;size:255;not null" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Order       int       `gorm:"column:order_index;not null;default:0;uniqueIndex:idx_pages_template_order,priority:2" json:"order"`
	Sections    []Section `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE" json:"sections"`
}

func (Page) TableName() string {
	return "pages"
}

func (p *Page) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type Section struct {
	ID           string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	PageID       string     `gorm:"column:page_id;size:36;not null;uniqueIndex:idx_sections_page_order,priority:1" json:"page_id"`
	Title        string     `gorm:"column:title;size:255;not null" json:"title"`
	Description  string     `gorm:"column:description;type:text" json:"description"`
	Order        int        `gorm:"column:order_index;not null;default:0;uniqueIndex:idx_sections_page_order,priority:2" json:"order"`
	IsRepeatable bool       `gorm:"column:is_repeatable;not null;default:false" json:"is_repeatable"`
	Questions    []Question `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"questions"`
}

func (Section) TableName() string {
	return "sections"
}

func (s *Section) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}
