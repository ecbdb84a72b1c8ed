package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vnkhanh/audit-server/models"
)

type inspectionFixture struct {
	svc      *InspectionService
	tpl      *models.Template
	ins      *models.Inspection
	selectQ  *models.Question
	photoQ   *models.Question
	sliderQ  *models.Question
	optionID func(value string) *string
}

func newInspectionFixture(t *testing.T) inspectionFixture {
	t.Helper()
	db := openTestDB(t)
	owner := createUser(t, db, "auditor@example.com", models.RoleAuditor)
	ctx := context.Background()

	tpl, err := NewTemplateService(db).Create(ctx, scenarioDefinition(), owner.ID)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	svc := NewInspectionService(db)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }

	ins, err := svc.Create(ctx, tpl.ID, owner.ID, "")
	if err != nil {
		t.Fatalf("create inspection: %v", err)
	}

	qs := tpl.Questions()
	selectQ := qs[0]
	return inspectionFixture{
		svc:     svc,
		tpl:     tpl,
		ins:     ins,
		selectQ: selectQ,
		photoQ:  qs[1],
		sliderQ: qs[2],
		optionID: func(value string) *string {
			for _, o := range selectQ.Options {
				if o.Value == value {
					id := o.ID
					return &id
				}
			}
			t.Fatalf("no option %q", value)
			return nil
		},
	}
}

func TestCreateInspectionDefaults(t *testing.T) {
	fx := newInspectionFixture(t)
	if fx.ins.Status != models.StatusDraft {
		t.Fatalf("status = %s, want DRAFT", fx.ins.Status)
	}
	if fx.ins.Title != fx.tpl.Title || fx.ins.StartedAt != nil {
		t.Fatalf("inspection = %+v", fx.ins)
	}
	if fx.ins.Conductor == nil || fx.ins.Conductor.Email != "auditor@example.com" {
		t.Fatalf("conductor = %+v", fx.ins.Conductor)
	}

	if _, err := fx.svc.Create(context.Background(), "missing", fx.ins.ConductorID, ""); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("missing template: err=%v", err)
	}
	if _, err := fx.svc.Get(context.Background(), "missing"); !errors.Is(err, ErrInspectionNotFound) {
		t.Fatalf("missing inspection: err=%v", err)
	}
}

func TestPartialAnswerScoresFivePercent(t *testing.T) {
	fx := newInspectionFixture(t)
	ctx := context.Background()

	got, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{
		{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("partial")},
	})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if got.Status != models.StatusInProgress || got.StartedAt == nil {
		t.Fatalf("first answers should start the inspection: %s %v", got.Status, got.StartedAt)
	}
	if len(got.Answers) != 1 || got.Answers[0].Value != "partial" || *got.Answers[0].Score != 5 {
		t.Fatalf("answers = %+v", got.Answers)
	}
	if got.Answers[0].Option == nil || got.Answers[0].Question == nil {
		t.Fatalf("answer not expanded: %+v", got.Answers[0])
	}

	res, err := fx.svc.Score(ctx, fx.ins.ID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.Total != 5 || res.Max != 100 || res.Percentage != 5 {
		t.Fatalf("score = %+v", res)
	}
	if res.Passed == nil || *res.Passed {
		t.Fatalf("passed = %v, want false", res.Passed)
	}
}

func TestAnswersReplacePerSlot(t *testing.T) {
	fx := newInspectionFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("yes")}}); err != nil {
		t.Fatal(err)
	}
	got, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("no")}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Answers) != 1 || got.Answers[0].Value != "no" || *got.Answers[0].Score != 0 {
		t.Fatalf("answers = %+v", got.Answers)
	}
}

func TestSubmitAnswersValidation(t *testing.T) {
	fx := newInspectionFixture(t)
	ctx := context.Background()
	foreign := "not-an-option"

	cases := []struct {
		name string
		in   AnswerInput
	}{
		{"unknown question", AnswerInput{QuestionID: "nope", Value: "x"}},
		{"choice without option", AnswerInput{QuestionID: fx.selectQ.ID, Value: "yes"}},
		{"option of another question", AnswerInput{QuestionID: fx.selectQ.ID, OptionID: &foreign}},
		{"option on photo", AnswerInput{QuestionID: fx.photoQ.ID, OptionID: fx.optionID("yes")}},
		{"instance on fixed section", AnswerInput{QuestionID: fx.photoQ.ID, Value: "x", SectionInstance: 2}},
		{"slider not numeric", AnswerInput{QuestionID: fx.sliderQ.ID, Value: "banana"}},
		{"slider above max", AnswerInput{QuestionID: fx.sliderQ.ID, Value: "9999"}},
		{"slider below min", AnswerInput{QuestionID: fx.sliderQ.ID, Value: "0.5"}},
		{"slider NaN", AnswerInput{QuestionID: fx.sliderQ.ID, Value: "NaN"}},
	}
	for _, tc := range cases {
		if _, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{tc.in}); !errors.Is(err, ErrInvalidAnswer) {
			t.Errorf("%s: err=%v, want ErrInvalidAnswer", tc.name, err)
		}
	}

	got, err := fx.svc.Get(ctx, fx.ins.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusDraft || len(got.Answers) != 0 {
		t.Fatalf("rejected answers changed the inspection: %s, %d answers", got.Status, len(got.Answers))
	}
}

func TestSliderWithinRange(t *testing.T) {
	fx := newInspectionFixture(t)
	ctx := context.Background()

	for _, v := range []string{"1", " 7.5 ", "10"} {
		got, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{{QuestionID: fx.sliderQ.ID, Value: v}})
		if err != nil {
			t.Fatalf("value %q: %v", v, err)
		}
		if len(got.Answers) != 1 || got.Answers[0].Value != v {
			t.Fatalf("value %q stored as %+v", v, got.Answers)
		}
	}
}

func multiSelectDefinition() TemplateDefinition {
	return TemplateDefinition{
		Title:        "Kitchen",
		PassingScore: ptrF(10),
		Pages: []PageDefinition{{
			Title: "Kitchen",
			Sections: []SectionDefinition{{
				Title: "Hygiene",
				Questions: []QuestionDefinition{{
					Text: "Which items are clean?",
					Type: models.QuestionSelectMultiple,
					Options: []OptionDefinition{
						{Text: "Floor", Value: "floor", Score: ptrF(5)},
						{Text: "Hood", Value: "hood", Score: ptrF(5)},
					},
				}},
			}},
		}},
	}
}

func TestMultiSelectRejectsRepeatedOption(t *testing.T) {
	db := openTestDB(t)
	owner := createUser(t, db, "cook@example.com", models.RoleAuditor)
	ctx := context.Background()

	tpl, err := NewTemplateService(db).Create(ctx, multiSelectDefinition(), owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewInspectionService(db)
	ins, err := svc.Create(ctx, tpl.ID, owner.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	q := tpl.Questions()[0]
	var floor, hood string
	for _, o := range q.Options {
		switch o.Value {
		case "floor":
			floor = o.ID
		case "hood":
			hood = o.ID
		}
	}

	repeated := []AnswerInput{
		{QuestionID: q.ID, OptionID: &floor},
		{QuestionID: q.ID, OptionID: &floor},
		{QuestionID: q.ID, OptionID: &floor},
		{QuestionID: q.ID, OptionID: &floor},
	}
	if _, err := svc.SubmitAnswers(ctx, ins.ID, repeated); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("repeated option: err=%v, want ErrInvalidAnswer", err)
	}
	res, err := svc.Score(ctx, ins.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 || res.Passed == nil || *res.Passed {
		t.Fatalf("rejected submit still scored: %+v", res)
	}

	if _, err := svc.SubmitAnswers(ctx, ins.ID, []AnswerInput{
		{QuestionID: q.ID, OptionID: &floor},
		{QuestionID: q.ID, OptionID: &hood},
	}); err != nil {
		t.Fatalf("distinct options: %v", err)
	}
	res, err = svc.Score(ctx, ins.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 10 || res.Max != 10 || res.Percentage != 100 || res.Passed == nil || !*res.Passed {
		t.Fatalf("score = %+v", res)
	}
}

// lightingFixture uses the repeatable Lighting section of treeDefinition with a scored,
// required Lux question.
func lightingFixture(t *testing.T) (*InspectionService, *models.Template, *models.Inspection, *models.Question) {
	t.Helper()
	db := openTestDB(t)
	owner := createUser(t, db, "lights@example.com", models.RoleAuditor)
	ctx := context.Background()

	def := treeDefinition()
	lux := &def.Pages[0].Sections[1].Questions[0]
	lux.DefaultScore = ptrF(1)
	lux.IsRequired = true

	tpl, err := NewTemplateService(db).Create(ctx, def, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewInspectionService(db)
	ins, err := svc.Create(ctx, tpl.ID, owner.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range tpl.Questions() {
		if q.Text == "Lux" {
			return svc, tpl, ins, q
		}
	}
	t.Fatal("no Lux question")
	return nil, nil, nil, nil
}

func luxValues(answers []models.Answer, questionID string) map[int]string {
	out := map[int]string{}
	for _, a := range answers {
		if a.QuestionID == questionID {
			out[a.SectionInstance] = a.Value
		}
	}
	return out
}

func TestRepeatableSectionInstances(t *testing.T) {
	svc, tpl, ins, lux := lightingFixture(t)
	ctx := context.Background()

	if missing := MissingRequired(tpl, nil); len(missing) != 1 || missing[0] != lux.ID {
		t.Fatalf("missing before answers = %v", missing)
	}

	got, err := svc.SubmitAnswers(ctx, ins.ID, []AnswerInput{
		{QuestionID: lux.ID, Value: "300", SectionInstance: 0},
		{QuestionID: lux.ID, Value: "450", SectionInstance: 1},
		{QuestionID: lux.ID, Value: "500", SectionInstance: 2},
	})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	want := map[int]string{0: "300", 1: "450", 2: "500"}
	if vals := luxValues(got.Answers, lux.ID); len(vals) != 3 || vals[0] != want[0] || vals[1] != want[1] || vals[2] != want[2] {
		t.Fatalf("instances = %v, want %v", vals, want)
	}

	// Replacing instance 1 leaves 0 and 2 alone.
	got, err = svc.SubmitAnswers(ctx, ins.ID, []AnswerInput{{QuestionID: lux.ID, Value: "600", SectionInstance: 1}})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	want[1] = "600"
	if vals := luxValues(got.Answers, lux.ID); len(vals) != 3 || vals[0] != want[0] || vals[1] != want[1] || vals[2] != want[2] {
		t.Fatalf("instances after replace = %v, want %v", vals, want)
	}
	if n := len(got.Answers); n != 3 {
		t.Fatalf("answers = %d, want 3", n)
	}

	if missing := MissingRequired(got.Template, got.Answers); len(missing) != 0 {
		t.Fatalf("missing = %v", missing)
	}

	// Parking scores 2 + 3 once; Lux is worth 1 per instance answered.
	res, err := svc.Score(ctx, ins.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 || res.Max != 8 || res.Percentage != 37.5 {
		t.Fatalf("score = %+v", res)
	}
}

func TestTransitionsAndCompletion(t *testing.T) {
	fx := newInspectionFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Transition(ctx, fx.ins.ID, models.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("DRAFT -> COMPLETED: err=%v", err)
	}
	if _, err := fx.svc.Transition(ctx, fx.ins.ID, models.StatusInProgress); err != nil {
		t.Fatalf("DRAFT -> IN_PROGRESS: %v", err)
	}

	// Required select question unanswered.
	if _, err := fx.svc.Transition(ctx, fx.ins.ID, models.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete with missing answers: err=%v", err)
	}

	if _, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("partial")}}); err != nil {
		t.Fatal(err)
	}
	// "partial" triggers the require rule on the photo question.
	missing := MissingRequired(fx.tpl, []models.Answer{{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("partial"), Value: "partial"}})
	if len(missing) != 1 || missing[0] != fx.photoQ.ID {
		t.Fatalf("missing = %v, want the photo question", missing)
	}
	if _, err := fx.svc.Transition(ctx, fx.ins.ID, models.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete without required photo: err=%v", err)
	}

	if _, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{{
		QuestionID: fx.photoQ.ID,
		Files:      []FileInput{{Filename: "ext.jpg", MimeType: "image/jpeg", Size: 1024, URL: "https://files.example.com/ext.jpg"}},
	}}); err != nil {
		t.Fatal(err)
	}

	done, err := fx.svc.Transition(ctx, fx.ins.ID, models.StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("completed = %s %v", done.Status, done.CompletedAt)
	}
	if done.Score == nil || *done.Score != 5 || *done.Percentage != 5 || done.Passed == nil || *done.Passed {
		t.Fatalf("stored score = %v %v %v", done.Score, done.Percentage, done.Passed)
	}
	var files int
	for _, a := range done.Answers {
		files += len(a.Files)
	}
	if files != 1 {
		t.Fatalf("files = %d", files)
	}

	if _, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("yes")}}); !errors.Is(err, ErrInspectionLocked) {
		t.Fatalf("answer after completion: err=%v", err)
	}
	if _, err := fx.svc.Transition(ctx, fx.ins.ID, models.StatusArchived); err != nil {
		t.Fatalf("COMPLETED -> ARCHIVED: %v", err)
	}
	if _, err := fx.svc.Transition(ctx, fx.ins.ID, models.StatusDraft); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ARCHIVED -> DRAFT: err=%v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.StatusDraft, models.StatusInProgress, true},
		{models.StatusInProgress, models.StatusCompleted, true},
		{models.StatusCompleted, models.StatusArchived, true},
		{models.StatusDraft, models.StatusCompleted, false},
		{models.StatusCompleted, models.StatusInProgress, false},
		{models.StatusArchived, models.StatusDraft, false},
		{models.StatusDraft, models.StatusDraft, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDeleteInspectionRemovesAnswers(t *testing.T) {
	fx := newInspectionFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SubmitAnswers(ctx, fx.ins.ID, []AnswerInput{
		{QuestionID: fx.selectQ.ID, OptionID: fx.optionID("yes")},
		{QuestionID: fx.photoQ.ID, Files: []FileInput{{Filename: "a.png", URL: "https://files.example.com/a.png"}}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := fx.svc.Delete(ctx, fx.ins.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var answers, files int64
	fx.svc.db.Model(&models.Answer{}).Count(&answers)
	fx.svc.db.Model(&models.File{}).Count(&files)
	if answers != 0 || files != 0 {
		t.Fatalf("left %d answers and %d files", answers, files)
	}
	if err := fx.svc.Delete(ctx, fx.ins.ID); !errors.Is(err, ErrInspectionNotFound) {
		t.Fatalf("second delete: err=%v", err)
	}

	// With the inspection gone the template can be deleted again.
	if err := NewTemplateService(fx.svc.db).Delete(ctx, fx.tpl.ID); err != nil {
		t.Fatalf("template delete after inspection removal: %v", err)
	}
}

func TestListInspections(t *testing.T) {
	fx := newInspectionFixture(t)
	rows, err := fx.svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Template == nil || rows[0].Template.Title != fx.tpl.Title || rows[0].Conductor == nil {
		t.Fatalf("rows = %+v", rows)
	}
}
