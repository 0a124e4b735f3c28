package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCacheHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheHelper(client, "test:"), mr
}

type cachedExam struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_SetGet(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCacheHelper(t)

	want := cachedExam{ID: 7, Title: "algebra midterm"}
	if err := helper.Set(ctx, "exam:7", want, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "exam:7", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCacheHelper_GetMiss(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCacheHelper(t)

	var got cachedExam
	if err := helper.Get(ctx, "missing", &got); err != ErrCacheNotFound {
		t.Errorf("got %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelper_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestCacheHelper(t)

	if err := helper.SetString(ctx, "exam:7", "cached", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !mr.Exists("test:exam:7") {
		t.Error("stored key should carry the helper prefix")
	}
	if helper.GetCacheKey("exam:7") != "test:exam:7" {
		t.Errorf("GetCacheKey = %s", helper.GetCacheKey("exam:7"))
	}
}

func TestCacheHelper_DeleteAndExists(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCacheHelper(t)

	if err := helper.SetString(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := helper.SetString(ctx, "b", "2", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	exists, err := helper.Exists(ctx, "a")
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v, want true", exists, err)
	}

	if err := helper.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	exists, err = helper.Exists(ctx, "a")
	if err != nil || exists {
		t.Errorf("exists after delete = %v, %v, want false", exists, err)
	}
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "test:")

	if err := helper.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Errorf("set with nil client should be a no-op, got %v", err)
	}
	if err := helper.Delete(ctx, "k"); err != nil {
		t.Errorf("delete with nil client should be a no-op, got %v", err)
	}

	var dest string
	if err := helper.Get(ctx, "k", &dest); err != ErrCacheNotAvailable {
		t.Errorf("get with nil client = %v, want ErrCacheNotAvailable", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("miss executes the fetch", func(t *testing.T) {
		helper, _ := newTestCacheHelper(t)

		calls := 0
		var got cachedExam
		err := helper.CacheOrExecute(ctx, "exam:7", &got, time.Minute, func() (interface{}, error) {
			calls++
			return cachedExam{ID: 7, Title: "algebra midterm"}, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("fetch called %d times, want 1", calls)
		}
		if got.ID != 7 || got.Title != "algebra midterm" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("hit skips the fetch", func(t *testing.T) {
		helper, _ := newTestCacheHelper(t)
		if err := helper.Set(ctx, "exam:7", cachedExam{ID: 7, Title: "cached"}, time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		var got cachedExam
		err := helper.CacheOrExecute(ctx, "exam:7", &got, time.Minute, func() (interface{}, error) {
			t.Error("fetch must not run on a cache hit")
			return nil, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Title != "cached" {
			t.Errorf("got %+v, want the cached value", got)
		}
	})
}

func TestCacheManager(t *testing.T) {
	ctx := context.Background()

	t.Run("nil client builds degraded helpers", func(t *testing.T) {
		manager := NewCacheManager(nil)
		if err := manager.HealthCheck(ctx); err != ErrCacheNotAvailable {
			t.Errorf("health check = %v, want ErrCacheNotAvailable", err)
		}
	})

	t.Run("helpers use distinct prefixes", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		manager := NewCacheManager(client)
		if err := manager.HealthCheck(ctx); err != nil {
			t.Fatalf("health check failed: %v", err)
		}

		if err := manager.Exam.SetString(ctx, "7", "e", time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := manager.Question.SetString(ctx, "7", "q", time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if !mr.Exists("exam:7") || !mr.Exists("question:7") {
			t.Error("exam and question helpers should write under their own prefixes")
		}
	})
}
