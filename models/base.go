package models

import "github.com/google/uuid"

// assignID gives a row a fresh UUID unless the caller already chose one.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
