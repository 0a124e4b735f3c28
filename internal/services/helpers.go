package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func intPtr(i int) *int {
	return &i
}

// getUserRole resolves the role of a user from the identity provider.
// Unknown users default to student so a provider outage never widens
// permissions.
func getUserRole(ctx context.Context, repo repositories.Repository, userID string) (models.UserRole, error) {
	user, err := repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return models.RoleStudent, nil
		}
		return models.RoleStudent, err
	}
	return user.Role, nil
}

func isAdmin(ctx context.Context, repo repositories.Repository, userID string) (bool, error) {
	role, err := getUserRole(ctx, repo, userID)
	if err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}

func decodeMultipleChoiceKey(question *models.Question) (models.MultipleChoiceKey, error) {
	var key models.MultipleChoiceKey
	if err := json.Unmarshal(question.AnswerKey, &key); err != nil {
		return key, fmt.Errorf("malformed answer key for question %d: %w", question.ID, err)
	}
	return key, nil
}

func decodeFillBlankKey(question *models.Question) (models.FillBlankKey, error) {
	var key models.FillBlankKey
	if err := json.Unmarshal(question.AnswerKey, &key); err != nil {
		return key, fmt.Errorf("malformed answer key for question %d: %w", question.ID, err)
	}
	return key, nil
}
