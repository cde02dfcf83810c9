package uploadsession

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreIssueAndGet(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	session, err := store.Issue(ctx, 1, 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if session.Token == "" {
		t.Fatal("token must be server-generated")
	}
	if session.TeamID != 1 || session.UserID != 2 {
		t.Errorf("session: %+v", session)
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Error("expiry must be in the future")
	}

	got, err := store.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Token != session.Token {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStoreTokensAreUnique(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	a, _ := store.Issue(ctx, 1, 1)
	b, _ := store.Issue(ctx, 1, 1)
	if a.Token == b.Token {
		t.Error("tokens must be unique")
	}
}

func TestMemoryStoreUnknownToken(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	session, _ := store.Issue(ctx, 1, 1)
	time.Sleep(20 * time.Millisecond)

	if _, err := store.Get(ctx, session.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session must be gone, got %v", err)
	}
	if err := store.Touch(ctx, session.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("touch of expired session: %v", err)
	}
}

func TestMemoryStoreTouchExtends(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()

	session, _ := store.Issue(ctx, 1, 1)

	// Keep touching past the original TTL.
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		if err := store.Touch(ctx, session.Token); err != nil {
			t.Fatalf("touch %d: %v", i, err)
		}
	}

	if _, err := store.Get(ctx, session.Token); err != nil {
		t.Errorf("touched session must survive: %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	session, _ := store.Issue(ctx, 1, 1)
	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, session.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session must be gone, got %v", err)
	}
}
