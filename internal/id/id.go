package id

import "github.com/google/uuid"

// GenerateID creates a random UUID used as a primary key.
func GenerateID() string {
	return uuid.NewString()
}
