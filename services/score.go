package services

import (
	"math"
	"strings"

	"github.com/vnkhanh/audit-server/models"
)

// ScoreResult is the aggregate outcome of one inspection against its template.
type ScoreResult struct {
	ScoringEnabled bool     `json:"scoring_enabled"`
	Total          float64  `json:"total"`
	Max            float64  `json:"max"`
	Percentage     float64  `json:"percentage"`
	PassingScore   *float64 `json:"passing_score"`
	Passed         *bool    `json:"passed"`
}

// answered reports whether a free (option-less) answer counts as given.
// An unticked checkbox does not.
func answered(q *models.Question, a *models.Answer) bool {
	v := strings.TrimSpace(a.Value)
	if q.Type == models.QuestionCheckbox {
		switch strings.ToLower(v) {
		case "", "false", "0", "no":
			return false
		}
		return true
	}
	return v != "" || len(a.Files) > 0
}

// AnswerScore returns the points one answer earns: the chosen option's score, or the
// question's default score when it was answered without an option.
func AnswerScore(q *models.Question, a *models.Answer) float64 {
	if a.OptionID != nil {
		if opt := q.OptionByID(*a.OptionID); opt != nil && opt.Score != nil {
			return *opt.Score
		}
		return 0
	}
	if q.DefaultScore != nil && answered(q, a) {
		return *q.DefaultScore
	}
	return 0
}

// PossibleScore is the most a question can contribute to one section instance: its best
// option (all positive options for multi-select) or its default score.
func PossibleScore(q *models.Question) float64 {
	if !models.IsChoiceType(q.Type) {
		if q.DefaultScore != nil {
			return *q.DefaultScore
		}
		return 0
	}
	best := 0.0
	for _, o := range q.Options {
		if o.Score == nil {
			continue
		}
		if q.Type == models.QuestionSelectMultiple {
			if *o.Score > 0 {
				best += *o.Score
			}
		} else if *o.Score > best {
			best = *o.Score
		}
	}
	return best
}

// CalculateScore is a pure function of the template and the answers given against it.
// Answers to questions outside the template are ignored and an option picked twice in the
// same slot counts once. Without an explicit max, questions of a repeatable section count
// once per instance answered; percentages never exceed 100.
func CalculateScore(t *models.Template, answers []models.Answer) ScoreResult {
	if t == nil || !t.ScoringEnabled {
		return ScoreResult{}
	}

	questions := map[string]*models.Question{}
	sectionOf := map[string]*models.Section{}
	for pi := range t.Pages {
		for si := range t.Pages[pi].Sections {
			s := &t.Pages[pi].Sections[si]
			for qi := range s.Questions {
				questions[s.Questions[qi].ID] = &s.Questions[qi]
				sectionOf[s.Questions[qi].ID] = s
			}
		}
	}

	res := ScoreResult{ScoringEnabled: true, PassingScore: copyFloat(t.PassingScore)}
	seen := map[pick]bool{}
	instances := map[*models.Section]map[int]bool{}
	for i := range answers {
		a := &answers[i]
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		if a.OptionID != nil {
			p := pick{slot{q.ID, a.SectionInstance}, *a.OptionID}
			if seen[p] {
				continue
			}
			seen[p] = true
		}
		res.Total += AnswerScore(q, a)

		if s := sectionOf[q.ID]; s.IsRepeatable {
			if instances[s] == nil {
				instances[s] = map[int]bool{}
			}
			instances[s][a.SectionInstance] = true
		}
	}

	if t.MaxScore != nil {
		res.Max = *t.MaxScore
	} else {
		for id, q := range questions {
			n := 1
			if k := len(instances[sectionOf[id]]); k > n {
				n = k
			}
			res.Max += PossibleScore(q) * float64(n)
		}
	}
	if res.Max > 0 {
		res.Percentage = math.Min(100, math.Round(res.Total/res.Max*10000)/100)
	}
	if t.PassingScore != nil {
		passed := res.Total >= *t.PassingScore
		res.Passed = &passed
	}
	return res
}
