package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusDraft      = "DRAFT"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusArchived   = "ARCHIVED"
)

type Inspection struct {
	ID          string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	Title       string     `gorm:"column:title;size:255" json:"title"`
	TemplateID  string     `gorm:"column:template_id;size:36;not null;index" json:"template_id"`
	ConductorID string     `gorm:"column:conductor_id;size:36;not null;index" json:"conductor_id"`
	Status      string     `gorm:"column:status;size:20;not null;default:'DRAFT'" json:"status"`
	Score       *float64   `gorm:"column:score" json:"score"`
	MaxScore    *float64   `gorm:"column:max_score" json:"max_score"`
	Percentage  *float64   `gorm:"column:percentage" json:"percentage"`
	Passed      *bool      `gorm:"column:passed" json:"passed"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Template  *Template `gorm:"foreignKey:TemplateID;references:ID" json:"-"`
	Conductor *User     `gorm:"foreignKey:ConductorID;references:ID" json:"-"`
	Answers   []Answer  `gorm:"foreignKey:InspectionID;constraint:OnDelete:CASCADE" json:"answers"`
}

func (Inspection) TableName() string {
	return "inspections"
}

func (i *Inspection) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Answer is one response to a question; SectionInstance tells repetitions of a repeatable section apart.
type Answer struct {
	ID              string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	InspectionID    string    `gorm:"column:inspection_id;size:36;not null;index:idx_answers_slot,priority:1" json:"inspection_id"`
	QuestionID      string    `gorm:"column:question_id;size:36;not null;index:idx_answers_slot,priority:2" json:"question_id"`
	SectionInstance int       `gorm:"column:section_instance;not null;default:0;index:idx_answers_slot,priority:3" json:"section_instance"`
	OptionID        *string   `gorm:"column:option_id;size:36" json:"option_id"`
	Value           string    `gorm:"column:value;type:text" json:"value"`
	Score           *float64  `gorm:"column:score" json:"score"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Question *Question `gorm:"foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	Option   *Option   `gorm:"foreignKey:OptionID;references:ID" json:"option,omitempty"`
	Files    []File    `gorm:"foreignKey:AnswerID;constraint:OnDelete:CASCADE" json:"files"`
}

func (Answer) TableName() string {
	return "answers"
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// File records an attachment stored elsewhere; only its metadata lives here.
type File struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	AnswerID  string    `gorm:"column:answer_id;size:36;not null;index" json:"answer_id"`
	Filename  string    `gorm:"column:filename;size:255;not null" json:"filename"`
	MimeType  string    `gorm:"column:mime_type;size:100" json:"mime_type"`
	Size      int64     `gorm:"column:size" json:"size"`
	URL       string    `gorm:"column:url;type:text;not null" json:"url"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (File) TableName() string {
	return "files"
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}
