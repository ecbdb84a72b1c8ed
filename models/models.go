package models

// All lists every table, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Template{},
		&Page{},
		&Section{},
		&Question{},
		&Option{},
		&QuestionCondition{},
		&Inspection{},
		&Answer{},
		&File{},
		&ReportJob{},
	}
}
