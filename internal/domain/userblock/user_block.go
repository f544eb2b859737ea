package userblock

import "github.com/remaimber-it/mastery/internal/id"

// UserBlock is a learner's attempt at one block.
type UserBlock struct {
	ID        string
	UserID    string
	BlockID   string
	Completed bool
}

func New(userID, blockID string) *UserBlock {
	return &UserBlock{
		ID:      id.GenerateID(),
		UserID:  userID,
		BlockID: blockID,
	}
}
