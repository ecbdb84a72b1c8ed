package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	QuestionText           = "TEXT"
	QuestionNumber         = "NUMBER"
	QuestionSelectOne      = "SELECT_ONE"
	QuestionSelectMultiple = "SELECT_MULTIPLE"
	QuestionCheckbox       = "CHECKBOX"
	QuestionDate           = "DATE"
	QuestionTime           = "TIME"
	QuestionDateTime       = "DATETIME"
	QuestionPhoto          = "PHOTO"
	QuestionVideo          = "VIDEO"
	QuestionSignature      = "SIGNATURE"
	QuestionLocation       = "LOCATION"
	QuestionSlider         = "SLIDER"
	QuestionFile           = "FILE"
	QuestionAnnotation     = "ANNOTATION"
)

var questionTypes = map[string]bool{
	QuestionText: true, QuestionNumber: true, QuestionSelectOne: true, QuestionSelectMultiple: true,
	QuestionCheckbox: true, QuestionDate: true, QuestionTime: true, QuestionDateTime: true,
	QuestionPhoto: true, QuestionVideo: true, QuestionSignature: true, QuestionLocation: true,
	QuestionSlider: true, QuestionFile: true, QuestionAnnotation: true,
}

func IsQuestionType(t string) bool {
	return questionTypes[t]
}

// IsChoiceType reports whether answers to the type pick from the question's options.
func IsChoiceType(t string) bool {
	return t == QuestionSelectOne || t == QuestionSelectMultiple
}

type Question struct {
	ID              string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	SectionID       string         `gorm:"column:section_id;size:36;not null;uniqueIndex:idx_questions_section_order,priority:1" json:"section_id"`
	Text            string         `gorm:"column:text;type:text;not null" json:"text"`
	HelpText        string         `gorm:"column:help_text;type:text" json:"help_text"`
	Type            string         `gorm:"column:type;size:30;not null" json:"type"`
	IsRequired      bool           `gorm:"column:is_required;not null;default:false" json:"is_required"`
	Order           int            `gorm:"column:order_index;not null;default:0;uniqueIndex:idx_questions_section_order,priority:2" json:"order"`
	DefaultScore    *float64       `gorm:"column:default_score" json:"default_score"`
	ValidationRules datatypes.JSON `gorm:"column:validation_rules" json:"validation_rules"`

	Options    []Option            `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"options"`
	Conditions []QuestionCondition `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"conditions"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	assignID(&q.ID)
	return nil
}

// OptionByID looks an option up among the loaded options.
func (q *Question) OptionByID(id string) *Option {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

type Option struct {
	ID         string   `gorm:"column:id;primaryKey;size:36" json:"id"`
	QuestionID string   `gorm:"column:question_id;size:36;not null;uniqueIndex:idx_options_question_order,priority:1" json:"question_id"`
	Text       string   `gorm:"column:text;type:text;not null" json:"text"`
	Value      string   `gorm:"column:value;size:255" json:"value"`
	Score      *float64 `gorm:"column:score" json:"score"`
	Order      int      `gorm:"column:order_index;not null;default:0;uniqueIndex:idx_options_question_order,priority:2" json:"order"`
}

func (Option) TableName() string {
	return "options"
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// QuestionCondition is a display rule on QuestionID driven by the answer to TriggerQuestionID.
type QuestionCondition struct {
	ID                string `gorm:"column:id;primaryKey;size:36" json:"id"`
	QuestionID        string `gorm:"column:question_id;size:36;not null;index" json:"question_id"`
	TriggerQuestionID string `gorm:"column:trigger_question_id;size:36;not null;index" json:"trigger_question_id"`
	Operator          string `gorm:"column:operator;size:20;not null" json:"operator"`
	Value             string `gorm:"column:value;type:text" json:"value"`
	Action            string `gorm:"column:action;size:20;not null" json:"action"`
}

func (QuestionCondition) TableName() string {
	return "question_conditions"
}

func (c *QuestionCondition) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}
