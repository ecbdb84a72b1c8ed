package services

import (
	"errors"
	"fmt"
)

var (
	ErrTemplateNotFound   = errors.New("template not found")
	ErrInspectionNotFound = errors.New("inspection not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrReportNotFound     = errors.New("report job not found")

	ErrInvalidDefinition = errors.New("invalid template definition")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrInvalidReport     = errors.New("invalid report request")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInspectionLocked  = errors.New("inspection is no longer editable")
	ErrTemplateInUse     = errors.New("template is referenced by inspections")
)

func invalidf(base error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}
