package services

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/vnkhanh/audit-server/config"
	"github.com/vnkhanh/audit-server/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email, role string) models.User {
	t.Helper()
	u := models.User{Email: email, FirstName: "Test", LastName: role, Role: role, IsActive: true}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func intp(v int) *int { return &v }

// scenarioDefinition: one page, one section, a scored SELECT_ONE, an unscored PHOTO and a
// 1-10 SLIDER.
func scenarioDefinition() TemplateDefinition {
	return TemplateDefinition{
		Title:        "Warehouse audit",
		MaxScore:     ptrF(100),
		PassingScore: ptrF(80),
		Pages: []PageDefinition{{
			Title: "Floor",
			Sections: []SectionDefinition{{
				Title: "Extinguishers",
				Questions: []QuestionDefinition{
					{
						Key:        "ext",
						Text:       "Extinguisher present?",
						Type:       models.QuestionSelectOne,
						IsRequired: true,
						Options: []OptionDefinition{
							{Text: "Yes", Value: "yes", Score: ptrF(10)},
							{Text: "No", Value: "no", Score: ptrF(0)},
							{Text: "Partial", Value: "partial", Score: ptrF(5)},
						},
					},
					{
						Text: "Photo of the extinguisher",
						Type: models.QuestionPhoto,
						Conditions: []ConditionDefinition{
							{TriggerKey: "ext", Operator: "not_equals", Value: "no", Action: "require"},
						},
					},
					{
						Text:            "Gauge pressure",
						Type:            models.QuestionSlider,
						ValidationRules: []byte(`{"min":1,"max":10}`),
					},
				},
			}},
		}},
	}
}
