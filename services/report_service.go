package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/vnkhanh/audit-server/models"
)

// Uploader pushes a finished report to object storage and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error)
}

type ReportService struct {
	db       *gorm.DB
	dir      string
	uploader Uploader
}

// NewReportService writes reports under dir; uploader may be nil to keep them local only.
func NewReportService(db *gorm.DB, dir string, uploader Uploader) *ReportService {
	return &ReportService{db: db, dir: dir, uploader: uploader}
}

var reportHeader = []string{
	"inspection_id", "title", "conductor_email", "status",
	"score", "max_score", "percentage", "passed", "started_at", "completed_at",
}

var contentTypes = map[string]string{
	"csv":  "text/csv",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Queue records a report job for the template. Processing happens separately.
func (s *ReportService) Queue(ctx context.Context, templateID, format string) (*models.ReportJob, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if _, ok := contentTypes[format]; !ok {
		return nil, invalidf(ErrInvalidReport, "unsupported format %q", format)
	}

	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Template{}).Where("id = ?", templateID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrTemplateNotFound
	}

	job := models.ReportJob{
		JobID:      uuid.NewString(),
		TemplateID: templateID,
		Format:     format,
		Status:     models.ReportQueued,
	}
	if err := db.Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *ReportService) Get(ctx context.Context, jobID string) (*models.ReportJob, error) {
	var job models.ReportJob
	err := s.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Process builds the file for a queued job and records the outcome on the job row.
func (s *ReportService) Process(ctx context.Context, jobID string) error {
	db := s.db.WithContext(ctx)
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := db.Model(job).Update("status", models.ReportProcessing).Error; err != nil {
		return err
	}

	fail := func(cause error) error {
		msg := cause.Error()
		if err := db.Model(job).Updates(map[string]interface{}{"status": models.ReportFailed, "error_msg": msg}).Error; err != nil {
			return fmt.Errorf("%v (and marking job failed: %w)", cause, err)
		}
		return cause
	}

	rows, err := s.rows(db, job.TemplateID)
	if err != nil {
		return fail(err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fail(err)
	}
	outPath := filepath.Join(s.dir, fmt.Sprintf("report_%s.%s", job.JobID, job.Format))

	switch job.Format {
	case "xlsx":
		err = writeXLSX(outPath, rows)
	default:
		err = writeCSV(outPath, rows)
	}
	if err != nil {
		return fail(err)
	}

	updates := map[string]interface{}{"status": models.ReportDone, "file_path": outPath}
	if s.uploader != nil {
		f, err := os.Open(outPath)
		if err != nil {
			return fail(err)
		}
		url, err := s.uploader.Upload(ctx, path.Join("reports", filepath.Base(outPath)), f, contentTypes[job.Format])
		f.Close()
		if err != nil {
			return fail(fmt.Errorf("upload report: %w", err))
		}
		updates["public_url"] = url
	}
	return db.Model(job).Updates(updates).Error
}

func (s *ReportService) rows(db *gorm.DB, templateID string) ([][]string, error) {
	var inspections []models.Inspection
	if err := db.Preload("Conductor").
		Where("template_id = ?", templateID).
		Order("created_at ASC").
		Find(&inspections).Error; err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(inspections))
	for _, in := range inspections {
		email := ""
		if in.Conductor != nil {
			email = in.Conductor.Email
		}
		out = append(out, []string{
			in.ID,
			in.Title,
			email,
			in.Status,
			formatFloat(in.Score),
			formatFloat(in.MaxScore),
			formatFloat(in.Percentage),
			formatBool(in.Passed),
			formatTime(in.StartedAt),
			formatTime(in.CompletedAt),
		})
	}
	return out, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Inspections"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	all := append([][]string{reportHeader}, rows...)
	for i, r := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
