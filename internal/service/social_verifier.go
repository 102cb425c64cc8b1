package service

import (
	"context"
	"strings"

	"github.com/unclebandit/squdy-backend/internal/model"
)

// SocialVerifier checks that a wallet completed a social task
type SocialVerifier interface {
	Verify(ctx context.Context, wallet string, task model.SocialTask, proof string) (bool, error)
}

// MockSocialVerifier accepts any non-empty proof
type MockSocialVerifier struct{}

func (MockSocialVerifier) Verify(ctx context.Context, wallet string, task model.SocialTask, proof string) (bool, error) {
	return strings.TrimSpace(proof) != "", nil
}
