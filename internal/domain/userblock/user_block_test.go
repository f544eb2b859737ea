package userblock_test

import (
	"testing"

	"github.com/remaimber-it/mastery/internal/domain/userblock"
)

func TestNewUserBlock(t *testing.T) {
	ub := userblock.New("user-1", "block-1")

	if ub.ID == "" {
		t.Error("expected non-empty ID")
	}
	if ub.UserID != "user-1" || ub.BlockID != "block-1" {
		t.Errorf("unexpected owner fields: %+v", ub)
	}
	if ub.Completed {
		t.Error("expected new user block to be incomplete")
	}
}
