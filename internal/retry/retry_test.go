package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	jerrors "github.com/julianstephens/dayjot/internal/errors"
)

var fastPolicy = Policy{MaxRetries: 3, Initial: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxElapsed: time.Second}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := fastPolicy.Do(context.Background(), "insert", func() error {
		calls++
		if calls < 3 {
			return jerrors.Transient("insert", errors.New("database is locked"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := fastPolicy.Do(context.Background(), "insert", func() error {
		calls++
		return jerrors.Transient("insert", errors.New("database is locked"))
	})
	if !errors.Is(err, jerrors.ErrTransientStorage) {
		t.Fatalf("Do() error = %v, want transient", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + 3 retries)", calls)
	}
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	err := fastPolicy.Do(context.Background(), "get", func() error {
		calls++
		return jerrors.NotFound("entry", "e1")
	})
	if !errors.Is(err, jerrors.ErrNotFound) {
		t.Fatalf("Do() error = %v, want not found", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestValue(t *testing.T) {
	calls := 0
	v, err := Value(context.Background(), "count", func() (int, error) {
		calls++
		if calls == 1 {
			return 0, jerrors.Transient("count", errors.New("busy"))
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Errorf("Value() = %d, %v, want 42, nil", v, err)
	}
}
