package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/vnkhanh/audit-server/models"
	"github.com/vnkhanh/audit-server/utils"
)

const DemoTemplateTitle = "Safety Inspection Checklist"

type SeedUser struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      string
}

var DemoUsers = []SeedUser{
	{Email: "admin@freeauditor.com", FirstName: "Admin", LastName: "User", Password: "admin123", Role: models.RoleAdmin},
	{Email: "auditor@freeauditor.com", FirstName: "Demo", LastName: "Auditor", Password: "auditor123", Role: models.RoleAuditor},
}

func fp(v float64) *float64 { return &v }

// DemoTemplate is the workplace safety checklist the seed command installs.
func DemoTemplate() TemplateDefinition {
	return TemplateDefinition{
		Title:        DemoTemplateTitle,
		Description:  "Basic safety inspection template for workplace audits",
		MaxScore:     fp(100),
		PassingScore: fp(80),
		Pages: []PageDefinition{{
			Title:       "General Safety",
			Description: "Basic safety checks",
			Sections: []SectionDefinition{
				{
					Title:       "Emergency Equipment",
					Description: "Check emergency equipment availability and condition",
					Questions: []QuestionDefinition{
						{
							Text:         "Are fire extinguishers present and accessible?",
							Type:         models.QuestionSelectOne,
							IsRequired:   true,
							DefaultScore: fp(10),
							Options: []OptionDefinition{
								{Text: "Yes", Value: "yes", Score: fp(10)},
								{Text: "No", Value: "no", Score: fp(0)},
								{Text: "Partially", Value: "partial", Score: fp(5)},
							},
						},
						{
							Text:         "Are emergency exits clearly marked?",
							Type:         models.QuestionSelectOne,
							IsRequired:   true,
							DefaultScore: fp(10),
							Options: []OptionDefinition{
								{Text: "Yes", Value: "yes", Score: fp(10)},
								{Text: "No", Value: "no", Score: fp(0)},
							},
						},
						{
							Text: "Take a photo of the emergency equipment",
							Type: models.QuestionPhoto,
						},
					},
				},
				{
					Title:       "Personal Protective Equipment",
					Description: "Check PPE requirements and compliance",
					Questions: []QuestionDefinition{
						{
							Text:         "Are hard hats required in this area?",
							Type:         models.QuestionCheckbox,
							DefaultScore: fp(5),
						},
						{
							Text:            "PPE Compliance Score (1-10)",
							Type:            models.QuestionSlider,
							IsRequired:      true,
							DefaultScore:    fp(10),
							ValidationRules: json.RawMessage(`{"min":1,"max":10}`),
						},
					},
				},
			},
		}},
	}
}

func ensureSeedUser(db *gorm.DB, su SeedUser) (*models.User, error) {
	var u models.User
	err := db.Where("email = ?", su.Email).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(su.Password)
	if err != nil {
		return nil, err
	}
	u = models.User{
		Email:     su.Email,
		FirstName: su.FirstName,
		LastName:  su.LastName,
		Password:  hash,
		Role:      su.Role,
		IsActive:  true,
	}
	if err := db.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Seed installs the demo users and template. Running it twice changes nothing.
func Seed(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)

	var admin *models.User
	for _, su := range DemoUsers {
		u, err := ensureSeedUser(db, su)
		if err != nil {
			return err
		}
		log.Printf("[seed] user %s (%s)", u.Email, u.Role)
		if su.Role == models.RoleAdmin {
			admin = u
		}
	}

	var n int64
	if err := db.Model(&models.Template{}).
		Where("title = ? AND creator_id = ?", DemoTemplateTitle, admin.ID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[seed] template %q already present", DemoTemplateTitle)
		return nil
	}

	t, err := NewTemplateService(db).Create(ctx, DemoTemplate(), admin.ID)
	if err != nil {
		return err
	}
	log.Printf("[seed] template %q created (%s)", t.Title, t.ID)
	return nil
}
