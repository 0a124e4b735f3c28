package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
)

var (
	assemblyRng   = rand.New(rand.NewSource(time.Now().UnixNano()))
	assemblyRngMu sync.Mutex
)

// drawnQuestion is one sampled question with the points its matrix item
// pinned, if any
type drawnQuestion struct {
	QuestionID        uint
	PointsPerQuestion *int
}

// drawQuestions samples questions for every matrix item in position
// order. Each item draws uniformly without replacement from its slice of
// the supply, excluding questions already drawn by earlier items. A
// shortfall on any item aborts the whole draw.
func drawQuestions(ctx context.Context, repo repositories.Repository, items []models.ExamMatrixItem) ([]drawnQuestion, error) {
	used := make(map[uint]bool)
	var drawn []drawnQuestion

	for i, item := range items {
		criteria := repositories.SupplyCriteria{
			BankID:     item.BankID,
			Domain:     item.Domain,
			Difficulty: item.Difficulty,
			ExcludeIDs: claimedIDs(used),
		}

		eligible, err := repo.Question().GetEligibleIDs(ctx, nil, criteria)
		if err != nil {
			return nil, fmt.Errorf("failed to get eligible questions for item %d: %w", i, err)
		}

		if len(eligible) < item.QuestionCount {
			return nil, &InsufficientSupplyError{
				ItemIndex: i,
				Requested: item.QuestionCount,
				Available: len(eligible),
			}
		}

		sampled := sampleWithoutReplacement(eligible, item.QuestionCount)
		for _, qid := range sampled {
			used[qid] = true
			drawn = append(drawn, drawnQuestion{
				QuestionID:        qid,
				PointsPerQuestion: item.PointsPerQuestion,
			})
		}
	}

	return drawn, nil
}

// sampleWithoutReplacement picks n distinct ids uniformly at random
func sampleWithoutReplacement(ids []uint, n int) []uint {
	pool := make([]uint, len(ids))
	copy(pool, ids)

	assemblyRngMu.Lock()
	assemblyRng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	assemblyRngMu.Unlock()

	return pool[:n]
}

// assignPoints turns drawn questions into exam question rows. Questions
// whose item pinned points_per_question keep them. The remaining total
// is spread evenly over the rest in final order, the first remainder
// questions getting one extra point.
func assignPoints(drawn []drawnQuestion, requestedTotal *int) ([]models.ExamQuestion, int, error) {
	if len(drawn) == 0 {
		return nil, 0, NewValidationError("matrix_id", "matrix draws no questions", nil)
	}

	examQuestions := make([]models.ExamQuestion, len(drawn))
	fixedSum := 0
	var unfixed []int

	for i, d := range drawn {
		examQuestions[i] = models.ExamQuestion{
			QuestionID: d.QuestionID,
			Position:   i,
		}
		if d.PointsPerQuestion != nil {
			examQuestions[i].Points = *d.PointsPerQuestion
			fixedSum += *d.PointsPerQuestion
		} else {
			unfixed = append(unfixed, i)
		}
	}

	totalPoints := fixedSum

	if len(unfixed) > 0 {
		if requestedTotal == nil {
			return nil, 0, NewValidationError("total_points",
				"total_points is required when matrix items do not pin points_per_question", nil)
		}

		remaining := *requestedTotal - fixedSum
		if remaining < len(unfixed) {
			return nil, 0, NewValidationError("total_points",
				fmt.Sprintf("total_points %d leaves less than one point per question", *requestedTotal),
				*requestedTotal)
		}

		base := remaining / len(unfixed)
		extra := remaining % len(unfixed)
		for rank, idx := range unfixed {
			points := base
			if rank < extra {
				points++
			}
			examQuestions[idx].Points = points
		}
		totalPoints = fixedSum + remaining
	}

	if totalPoints <= 0 {
		return nil, 0, NewValidationError("total_points", "exam cannot have zero total points", totalPoints)
	}

	return examQuestions, totalPoints, nil
}
