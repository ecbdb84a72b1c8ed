package models

import "time"

const (
	ReportQueued     = "queued"
	ReportProcessing = "processing"
	ReportDone       = "done"
	ReportFailed     = "failed"
)

type ReportJob struct {
	JobID      string    `gorm:"column:job_id;primaryKey;size:36" json:"job_id"`
	TemplateID string    `gorm:"column:template_id;size:36;index" json:"template_id"`
	Format     string    `gorm:"column:format;size:10" json:"format"` // csv, xlsx
	Status     string    `gorm:"column:status;size:20;default:'queued'" json:"status"`
	FilePath   *string   `gorm:"column:file_path;type:text" json:"-"`
	PublicURL  *string   `gorm:"column:public_url;type:text" json:"public_url,omitempty"`
	ErrorMsg   *string   `gorm:"column:error_msg;type:text" json:"error,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReportJob) TableName() string {
	return "report_jobs"
}
