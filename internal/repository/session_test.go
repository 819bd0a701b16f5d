package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"map-pin-backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestSessionRepository(t *testing.T) *SessionRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionRepository(client)
}

func testRecord(sid, userID string) services.SessionRecord {
	return services.SessionRecord{
		SID:       sid,
		UserID:    userID,
		Email:     userID + "@example.com",
		Name:      "Test User",
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}
}

func TestSessionCreateAndGet(t *testing.T) {
	repo := newTestSessionRepository(t)
	ctx := context.Background()

	record := testRecord("s1", "u1")
	if err := repo.Create(ctx, record, "rt1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SID != "s1" || got.UserID != "u1" || got.Email != "u1@example.com" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.ExpiresAt.Equal(record.ExpiresAt) {
		t.Fatalf("expires_at = %v, want %v", got.ExpiresAt, record.ExpiresAt)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionGetByRefreshToken(t *testing.T) {
	repo := newTestSessionRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("s1", "u1"), "rt1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByRefreshToken(ctx, "rt1")
	if err != nil {
		t.Fatalf("get by refresh: %v", err)
	}
	if got.SID != "s1" || got.UserID != "u1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := repo.GetByRefreshToken(ctx, "rotated"); !errors.Is(err, services.ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound, got %v", err)
	}
}

func TestSessionDeleteRemovesRefreshIndex(t *testing.T) {
	repo := newTestSessionRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("s1", "u1"), "rt1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.Get(ctx, "s1"); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	// The refresh token must die with the session, otherwise a signed-out
	// session would still refresh.
	if _, err := repo.GetByRefreshToken(ctx, "rt1"); !errors.Is(err, services.ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound after delete, got %v", err)
	}

	// Deleting an unknown session is a no-op.
	if err := repo.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestSessionDeleteAllForUser(t *testing.T) {
	repo := newTestSessionRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("s1", "u1"), "rt1"); err != nil {
		t.Fatalf("create s1: %v", err)
	}
	if err := repo.Create(ctx, testRecord("s2", "u1"), "rt2"); err != nil {
		t.Fatalf("create s2: %v", err)
	}
	if err := repo.Create(ctx, testRecord("s3", "u2"), "rt3"); err != nil {
		t.Fatalf("create s3: %v", err)
	}

	if err := repo.DeleteAllForUser(ctx, "u1"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for _, sid := range []string{"s1", "s2"} {
		if _, err := repo.Get(ctx, sid); !errors.Is(err, services.ErrSessionNotFound) {
			t.Fatalf("session %s should be gone, got %v", sid, err)
		}
	}
	for _, token := range []string{"rt1", "rt2"} {
		if _, err := repo.GetByRefreshToken(ctx, token); !errors.Is(err, services.ErrRefreshNotFound) {
			t.Fatalf("refresh %s should be gone, got %v", token, err)
		}
	}
	if _, err := repo.Get(ctx, "s3"); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
}

func TestSessionCreateRejectsIncompleteRecords(t *testing.T) {
	repo := newTestSessionRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("", "u1"), "rt1"); err == nil {
		t.Fatal("expected error for missing sid")
	}
	if err := repo.Create(ctx, testRecord("s1", "u1"), ""); err == nil {
		t.Fatal("expected error for missing refresh token")
	}

	expired := testRecord("s1", "u1")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := repo.Create(ctx, expired, "rt1"); err == nil {
		t.Fatal("expected error for already expired session")
	}
}
