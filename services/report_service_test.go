package services

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/vnkhanh/audit-server/models"
)

type memUploader struct {
	paths []string
	sizes []int
}

func (u *memUploader) Upload(_ context.Context, objectPath string, r io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	u.paths = append(u.paths, objectPath)
	u.sizes = append(u.sizes, len(b))
	return "https://storage.example.com/" + objectPath, nil
}

func reportFixture(t *testing.T) (*ReportService, *memUploader, string) {
	t.Helper()
	fx := newInspectionFixture(t)
	ctx := context.Background()
	if _, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("yes")}}); err != nil {
		t.Fatal(err)
	}
	up := &memUploader{}
	return NewReportService(fx.svc.db, t.TempDir(), up), up, fx.tpl.ID
}

func TestReportCSV(t *testing.T) {
	svc, up, templateID := reportFixture(t)
	ctx := context.Background()

	job, err := svc.Queue(ctx, templateID, "")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if job.Format != "csv" || job.Status != models.ReportQueued {
		t.Fatalf("job = %+v", job)
	}
	if err := svc.Process(ctx, job.JobID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	done, err := svc.Get(ctx, job.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.ReportDone || done.FilePath == nil || done.PublicURL == nil {
		t.Fatalf("done = %+v", done)
	}
	if len(up.paths) != 1 || up.paths[0] != "reports/report_"+job.JobID+".csv" || up.sizes[0] == 0 {
		t.Fatalf("uploads = %v %v", up.paths, up.sizes)
	}

	f, err := os.Open(*done.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0][0] != "inspection_id" {
		t.Fatalf("records = %v", records)
	}
	if records[1][2] != "auditor@example.com" || records[1][3] != models.StatusInProgress {
		t.Fatalf("row = %v", records[1])
	}
}

func TestReportXLSX(t *testing.T) {
	svc, _, templateID := reportFixture(t)
	svc.uploader = nil
	ctx := context.Background()

	job, err := svc.Queue(ctx, templateID, "XLSX")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if err := svc.Process(ctx, job.JobID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	done, _ := svc.Get(ctx, job.JobID)
	if done.PublicURL != nil {
		t.Fatalf("no uploader, yet public url %q", *done.PublicURL)
	}

	x, err := excelize.OpenFile(*done.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	defer x.Close()
	rows, err := x.GetRows("Inspections")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][1] != "title" || rows[1][1] != "Warehouse audit" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestReportQueueErrors(t *testing.T) {
	svc, _, templateID := reportFixture(t)
	ctx := context.Background()

	if _, err := svc.Queue(ctx, templateID, "pdf"); !errors.Is(err, ErrInvalidReport) {
		t.Fatalf("pdf: err=%v", err)
	}
	if _, err := svc.Queue(ctx, "missing", "csv"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("missing template: err=%v", err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("missing job: err=%v", err)
	}
}
