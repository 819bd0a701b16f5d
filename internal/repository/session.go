package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"map-pin-backend/internal/services"

	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionPrefix        = "sessions:"
	refreshPrefix        = "refresh:"
	sessionRefreshPrefix = "session_refresh:"
	userSessionsPrefix   = "user_sessions:"
)

// SessionRepository keeps sessions and their refresh-token index in redis
type SessionRepository struct {
	client *goredis.Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *goredis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Create stores a session record and indexes it by refresh token
func (r *SessionRepository) Create(ctx context.Context, session services.SessionRecord, refreshToken string) error {
	if session.SID == "" || session.UserID == "" || refreshToken == "" {
		return fmt.Errorf("incomplete session record")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	fields := map[string]interface{}{
		"user_id":    session.UserID,
		"email":      session.Email,
		"name":       session.Name,
		"expires_at": session.ExpiresAt.Unix(),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(session.SID), fields)
	pipe.Expire(ctx, sessionKey(session.SID), ttl)
	pipe.HSet(ctx, refreshKey(refreshToken), map[string]interface{}{
		"sid":        session.SID,
		"user_id":    session.UserID,
		"email":      session.Email,
		"name":       session.Name,
		"expires_at": session.ExpiresAt.Unix(),
	})
	pipe.Expire(ctx, refreshKey(refreshToken), ttl)
	pipe.Set(ctx, sessionRefreshKey(session.SID), refreshToken, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
	pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by session id
func (r *SessionRepository) Get(ctx context.Context, sid string) (services.SessionRecord, error) {
	values, err := r.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return services.SessionRecord{}, fmt.Errorf("failed to get session: %w", err)
	}
	if len(values) == 0 {
		return services.SessionRecord{}, services.ErrSessionNotFound
	}

	record, err := parseSessionRecord(values)
	if err != nil {
		return services.SessionRecord{}, err
	}
	record.SID = sid
	return record, nil
}

// GetByRefreshToken retrieves a session by its refresh token
func (r *SessionRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (services.SessionRecord, error) {
	values, err := r.client.HGetAll(ctx, refreshKey(refreshToken)).Result()
	if err != nil {
		return services.SessionRecord{}, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if len(values) == 0 {
		return services.SessionRecord{}, services.ErrRefreshNotFound
	}

	record, err := parseSessionRecord(values)
	if err != nil {
		return services.SessionRecord{}, err
	}
	record.SID = values["sid"]
	if record.SID == "" {
		return services.SessionRecord{}, services.ErrRefreshNotFound
	}
	return record, nil
}

// Delete removes a session by session id
func (r *SessionRepository) Delete(ctx context.Context, sid string) error {
	record, err := r.Get(ctx, sid)
	if err != nil {
		if err == services.ErrSessionNotFound {
			return nil
		}
		return err
	}

	refreshToken, _ := r.client.Get(ctx, sessionRefreshKey(sid)).Result()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sid))
	pipe.Del(ctx, sessionRefreshKey(sid))
	if refreshToken != "" {
		pipe.Del(ctx, refreshKey(refreshToken))
	}
	pipe.SRem(ctx, userSessionsKey(record.UserID), sid)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session of a user
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	sids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, sid := range sids {
		refreshToken, _ := r.client.Get(ctx, sessionRefreshKey(sid)).Result()
		pipe.Del(ctx, sessionKey(sid))
		pipe.Del(ctx, sessionRefreshKey(sid))
		if refreshToken != "" {
			pipe.Del(ctx, refreshKey(refreshToken))
		}
	}
	pipe.Del(ctx, userSessionsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func parseSessionRecord(values map[string]string) (services.SessionRecord, error) {
	expiresUnix, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return services.SessionRecord{}, fmt.Errorf("malformed session record: %w", err)
	}
	return services.SessionRecord{
		UserID:    values["user_id"],
		Email:     values["email"],
		Name:      values["name"],
		ExpiresAt: time.Unix(expiresUnix, 0),
	}, nil
}

func sessionKey(sid string) string {
	return sessionPrefix + sid
}

func refreshKey(token string) string {
	return refreshPrefix + token
}

func sessionRefreshKey(sid string) string {
	return sessionRefreshPrefix + sid
}

func userSessionsKey(userID string) string {
	return userSessionsPrefix + userID
}
