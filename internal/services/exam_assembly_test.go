package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
)

func TestDrawQuestions(t *testing.T) {
	ctx := context.Background()

	t.Run("items draw disjoint questions", func(t *testing.T) {
		repo := newMockRepository()
		supply := []uint{1, 2, 3, 4, 5, 6, 7, 8}
		repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
			var eligible []uint
			excluded := make(map[uint]bool, len(criteria.ExcludeIDs))
			for _, id := range criteria.ExcludeIDs {
				excluded[id] = true
			}
			for _, id := range supply {
				if !excluded[id] {
					eligible = append(eligible, id)
				}
			}
			return eligible, nil
		}

		items := []models.ExamMatrixItem{
			{BankID: 1, QuestionCount: 3, Position: 0},
			{BankID: 1, QuestionCount: 4, Position: 1},
		}

		drawn, err := drawQuestions(ctx, repo, items)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(drawn) != 7 {
			t.Fatalf("drew %d questions, want 7", len(drawn))
		}

		seen := make(map[uint]bool)
		for _, d := range drawn {
			if seen[d.QuestionID] {
				t.Errorf("question %d drawn twice", d.QuestionID)
			}
			seen[d.QuestionID] = true
		}
	})

	t.Run("shortfall aborts with item details", func(t *testing.T) {
		repo := newMockRepository()
		repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
			return []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, nil
		}

		items := []models.ExamMatrixItem{
			{BankID: 1, QuestionCount: 15, Position: 0},
		}

		_, err := drawQuestions(ctx, repo, items)
		var supplyErr *InsufficientSupplyError
		if !errors.As(err, &supplyErr) {
			t.Fatalf("got %v, want InsufficientSupplyError", err)
		}
		if supplyErr.ItemIndex != 0 || supplyErr.Requested != 15 || supplyErr.Available != 10 {
			t.Errorf("got %+v, want item 0 requested 15 available 10", supplyErr)
		}
		if !errors.Is(err, ErrInsufficientSupply) {
			t.Error("InsufficientSupplyError should unwrap to ErrInsufficientSupply")
		}
	})
}

func TestSampleWithoutReplacement(t *testing.T) {
	ids := []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	sampled := sampleWithoutReplacement(ids, 6)
	if len(sampled) != 6 {
		t.Fatalf("sampled %d ids, want 6", len(sampled))
	}

	valid := make(map[uint]bool, len(ids))
	for _, id := range ids {
		valid[id] = true
	}
	seen := make(map[uint]bool)
	for _, id := range sampled {
		if !valid[id] {
			t.Errorf("sampled id %d not in the pool", id)
		}
		if seen[id] {
			t.Errorf("id %d sampled twice", id)
		}
		seen[id] = true
	}

	// The input slice must not be reordered in place
	for i, id := range ids {
		if id != uint(i+1) {
			t.Fatal("sampleWithoutReplacement mutated its input")
		}
	}
}

func TestAssignPoints(t *testing.T) {
	t.Run("even distribution with remainder", func(t *testing.T) {
		drawn := make([]drawnQuestion, 10)
		for i := range drawn {
			drawn[i] = drawnQuestion{QuestionID: uint(i + 1)}
		}

		questions, total, err := assignPoints(drawn, intPtr(33))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 33 {
			t.Errorf("total = %d, want 33", total)
		}

		sum := 0
		for i, q := range questions {
			sum += q.Points
			want := 3
			if i < 3 {
				want = 4
			}
			if q.Points != want {
				t.Errorf("question %d points = %d, want %d", i, q.Points, want)
			}
		}
		if sum != 33 {
			t.Errorf("points sum to %d, want 33", sum)
		}
	})

	t.Run("pinned points are kept", func(t *testing.T) {
		drawn := []drawnQuestion{
			{QuestionID: 1, PointsPerQuestion: intPtr(2)},
			{QuestionID: 2, PointsPerQuestion: intPtr(2)},
			{QuestionID: 3, PointsPerQuestion: intPtr(2)},
			{QuestionID: 4, PointsPerQuestion: intPtr(2)},
			{QuestionID: 5, PointsPerQuestion: intPtr(2)},
		}

		questions, total, err := assignPoints(drawn, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 10 {
			t.Errorf("total = %d, want 10", total)
		}
		for i, q := range questions {
			if q.Points != 2 {
				t.Errorf("question %d points = %d, want 2", i, q.Points)
			}
			if q.Position != i {
				t.Errorf("question %d position = %d, want %d", i, q.Position, i)
			}
		}
	})

	t.Run("mixed pinned and distributed", func(t *testing.T) {
		drawn := []drawnQuestion{
			{QuestionID: 1, PointsPerQuestion: intPtr(5)},
			{QuestionID: 2},
			{QuestionID: 3},
			{QuestionID: 4},
		}

		questions, total, err := assignPoints(drawn, intPtr(15))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 15 {
			t.Errorf("total = %d, want 15", total)
		}
		// 10 remaining over 3 unfixed: 4, 3, 3
		wantPoints := []int{5, 4, 3, 3}
		for i, q := range questions {
			if q.Points != wantPoints[i] {
				t.Errorf("question %d points = %d, want %d", i, q.Points, wantPoints[i])
			}
		}
	})

	t.Run("missing total with unfixed items is rejected", func(t *testing.T) {
		drawn := []drawnQuestion{{QuestionID: 1}, {QuestionID: 2}}

		_, _, err := assignPoints(drawn, nil)
		var errs ValidationErrors
		if !errors.As(err, &errs) {
			t.Fatalf("got %v, want validation error", err)
		}
	})

	t.Run("total below one point per question is rejected", func(t *testing.T) {
		drawn := []drawnQuestion{{QuestionID: 1}, {QuestionID: 2}, {QuestionID: 3}}

		_, _, err := assignPoints(drawn, intPtr(2))
		var errs ValidationErrors
		if !errors.As(err, &errs) {
			t.Fatalf("got %v, want validation error", err)
		}
	})

	t.Run("empty draw is rejected", func(t *testing.T) {
		_, _, err := assignPoints(nil, intPtr(10))
		var errs ValidationErrors
		if !errors.As(err, &errs) {
			t.Fatalf("got %v, want validation error", err)
		}
	})
}
