package services

import (
	"testing"

	"github.com/vnkhanh/audit-server/models"
)

func ptrF(v float64) *float64 { return &v }
func ptrS(v string) *string { return &v }

func scoringTemplate(max, passing *float64) *models.Template {
	return &models.Template{
		ScoringEnabled: true,
		MaxScore:       max,
		PassingScore:   passing,
		Pages: []models.Page{{
			Sections: []models.Section{{
				Questions: []models.Question{
					{
						ID:   "q-select",
						Type: models.QuestionSelectOne,
						Options: []models.Option{
							{ID: "o-yes", Score: ptrF(10)},
							{ID: "o-no", Score: ptrF(0)},
							{ID: "o-partial", Score: ptrF(5)},
						},
					},
					{ID: "q-photo", Type: models.QuestionPhoto},
					{ID: "q-slider", Type: models.QuestionSlider, DefaultScore: ptrF(10)},
					{ID: "q-check", Type: models.QuestionCheckbox, DefaultScore: ptrF(5)},
				},
			}},
		}},
	}
}

func TestCalculateScorePartialOption(t *testing.T) {
	tpl := scoringTemplate(ptrF(100), ptrF(80))
	got := CalculateScore(tpl, []models.Answer{{QuestionID: "q-select", OptionID: ptrS("o-partial")}})

	if got.Total != 5 {
		t.Fatalf("total=%v, want 5", got.Total)
	}
	if got.Max != 100 {
		t.Fatalf("max=%v, want 100", got.Max)
	}
	if got.Percentage != 5 {
		t.Fatalf("percentage=%v, want 5", got.Percentage)
	}
	if got.Passed == nil || *got.Passed {
		t.Fatalf("passed=%v, want false", got.Passed)
	}
}

func TestCalculateScoreDefaultScores(t *testing.T) {
	tpl := scoringTemplate(nil, ptrF(20))
	answers := []models.Answer{
		{QuestionID: "q-select", OptionID: ptrS("o-yes")},
		{QuestionID: "q-slider", Value: "7"},
		{QuestionID: "q-check", Value: "false"},
		{QuestionID: "q-photo", Value: "https://cdn.example/photo.jpg"},
		{QuestionID: "unknown", Value: "ignored"},
	}
	got := CalculateScore(tpl, answers)

	if got.Total != 20 {
		t.Fatalf("total=%v, want 20", got.Total)
	}
	// 10 (best option) + 10 (slider) + 5 (checkbox); photo has no score.
	if got.Max != 25 {
		t.Fatalf("max=%v, want 25", got.Max)
	}
	if got.Percentage != 80 {
		t.Fatalf("percentage=%v, want 80", got.Percentage)
	}
	if got.Passed == nil || !*got.Passed {
		t.Fatalf("passed=%v, want true", got.Passed)
	}
}

func TestCalculateScoreDisabledOrNoThreshold(t *testing.T) {
	tpl := scoringTemplate(ptrF(100), nil)
	tpl.ScoringEnabled = false
	if got := CalculateScore(tpl, []models.Answer{{QuestionID: "q-select", OptionID: ptrS("o-yes")}}); got.ScoringEnabled || got.Total != 0 {
		t.Fatalf("disabled scoring produced %+v", got)
	}

	tpl.ScoringEnabled = true
	got := CalculateScore(tpl, []models.Answer{{QuestionID: "q-select", OptionID: ptrS("o-yes")}})
	if got.Passed != nil {
		t.Fatalf("passed=%v, want nil without passing score", *got.Passed)
	}
	if got.Total != 10 {
		t.Fatalf("total=%v, want 10", got.Total)
	}
}

func TestPossibleScoreMultiSelect(t *testing.T) {
	q := &models.Question{
		Type: models.QuestionSelectMultiple,
		Options: []models.Option{
			{ID: "a", Score: ptrF(3)},
			{ID: "b", Score: ptrF(4)},
			{ID: "c", Score: ptrF(-2)},
			{ID: "d"},
		},
	}
	if got := PossibleScore(q); got != 7 {
		t.Fatalf("PossibleScore=%v, want 7", got)
	}
}

func TestAnswerScoreCheckbox(t *testing.T) {
	q := &models.Question{Type: models.QuestionCheckbox, DefaultScore: ptrF(5)}
	cases := []struct {
		value string
		want  float64
	}{
		{"true", 5},
		{"yes", 5},
		{"false", 0},
		{"", 0},
		{"0", 0},
	}
	for _, c := range cases {
		if got := AnswerScore(q, &models.Answer{Value: c.value}); got != c.want {
			t.Errorf("AnswerScore(%q)=%v, want %v", c.value, got, c.want)
		}
	}
}

func TestCalculateScoreCountsRepeatedPickOnce(t *testing.T) {
	tpl := &models.Template{
		ScoringEnabled: true,
		Pages: []models.Page{{Sections: []models.Section{{Questions: []models.Question{{
			ID:      "q-multi",
			Type:    models.QuestionSelectMultiple,
			Options: []models.Option{{ID: "a", Score: ptrF(5)}, {ID: "b", Score: ptrF(5)}},
		}}}}}},
	}
	answers := []models.Answer{
		{QuestionID: "q-multi", OptionID: ptrS("a")},
		{QuestionID: "q-multi", OptionID: ptrS("a")},
		{QuestionID: "q-multi", OptionID: ptrS("a")},
	}
	got := CalculateScore(tpl, answers)
	if got.Total != 5 || got.Max != 10 || got.Percentage != 50 {
		t.Fatalf("score = %+v", got)
	}
}

func repeatableTemplate(max *float64) *models.Template {
	return &models.Template{
		ScoringEnabled: true,
		MaxScore:       max,
		Pages: []models.Page{{Sections: []models.Section{
			{ID: "s-fixed", Questions: []models.Question{{ID: "q-check", Type: models.QuestionCheckbox, DefaultScore: ptrF(4)}}},
			{ID: "s-rooms", IsRepeatable: true, Questions: []models.Question{{ID: "q-room", Type: models.QuestionNumber, DefaultScore: ptrF(2)}}},
		}}},
	}
}

func TestCalculateScoreRepeatableInstances(t *testing.T) {
	answers := []models.Answer{
		{QuestionID: "q-check", Value: "true"},
		{QuestionID: "q-room", Value: "1", SectionInstance: 0},
		{QuestionID: "q-room", Value: "2", SectionInstance: 1},
		{QuestionID: "q-room", Value: "3", SectionInstance: 2},
	}

	got := CalculateScore(repeatableTemplate(nil), answers)
	if got.Total != 10 || got.Max != 10 || got.Percentage != 100 {
		t.Fatalf("derived max: %+v", got)
	}

	got = CalculateScore(repeatableTemplate(nil), answers[:1])
	if got.Total != 4 || got.Max != 6 {
		t.Fatalf("no instances answered: %+v", got)
	}

	// An explicit max is kept; the percentage stops at 100.
	got = CalculateScore(repeatableTemplate(ptrF(6)), answers)
	if got.Total != 10 || got.Max != 6 || got.Percentage != 100 {
		t.Fatalf("explicit max: %+v", got)
	}
}
