package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"map-pin-backend/internal/config"
	"map-pin-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrSessionNotFound is returned by a SessionStore when no session
	// exists for the given session id
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshNotFound is returned by a SessionStore when a presented
	// refresh token is unknown or already rotated out
	ErrRefreshNotFound = errors.New("refresh token not found")
)

// SessionRecord is the server-side session state kept in the session store.
// Email and name are carried so a missing profile row can be recreated
// lazily on the next resolved session.
type SessionRecord struct {
	SID       string
	UserID    string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// SessionStore keeps sessions and their refresh-token index
type SessionStore interface {
	Create(ctx context.Context, session SessionRecord, refreshToken string) error
	Get(ctx context.Context, sid string) (SessionRecord, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (SessionRecord, error)
	Delete(ctx context.Context, sid string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// UserStore is the profile persistence the auth service depends on
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, string, error)
	CreateAccount(ctx context.Context, user *models.User, passwordHash string) error
	Create(ctx context.Context, user *models.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Credentials is the raw token material extracted from a request
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

type credentialsKey struct{}

// WithCredentials attaches request credentials to the context
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFromContext extracts request credentials from the context
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}

// AuthResult is returned from sign-up and sign-in
type AuthResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type accessClaims struct {
	UserID string
	SID    string
	Email  string
	Name   string
}

// AuthService owns identities: account creation, sign-in/out, and identity
// resolution for mutating operations.
type AuthService struct {
	users     UserStore
	sessions  SessionStore
	jwtSecret string
	jwtCfg    config.JWTConfig
	policy    config.AuthConfig
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, sessions SessionStore, jwtCfg config.JWTConfig, policy config.AuthConfig) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		jwtSecret: jwtCfg.Secret,
		jwtCfg:    jwtCfg,
		policy:    policy,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SignUp creates an account and opens a session for it
func (s *AuthService) SignUp(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if len(password) < 8 {
		return nil, &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	if strings.TrimSpace(name) == "" {
		name = "User"
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateAccount(ctx, user, string(hash)); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return s.openSession(ctx, user)
}

// SignIn verifies credentials and opens a session
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, passwordHash, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(ctx, user)
}

// SignOut invalidates the session carried by the request credentials
func (s *AuthService) SignOut(ctx context.Context) error {
	creds, ok := CredentialsFromContext(ctx)
	if !ok || creds.AccessToken == "" {
		return ErrAuthRequired
	}

	claims, err := s.parseAccessToken(creds.AccessToken)
	if err != nil {
		return ErrAuthRequired
	}

	if err := s.sessions.Delete(ctx, claims.SID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ResolveIdentity resolves the active session's identity. A fast session
// lookup runs first; a stale refresh token forces local sign-out and yields
// ErrSessionExpired, never a silent nil identity. Otherwise the profile is
// fetched through a timeout-bounded lookup retried once after a fixed delay.
func (s *AuthService) ResolveIdentity(ctx context.Context) (*models.User, error) {
	creds, ok := CredentialsFromContext(ctx)
	if !ok || (creds.AccessToken == "" && creds.RefreshToken == "") {
		return nil, ErrAuthRequired
	}

	var claims *accessClaims
	if creds.AccessToken != "" {
		parsed, err := s.parseAccessToken(creds.AccessToken)
		if err == nil {
			claims = parsed
		}
	}

	record, err := s.fastSessionLookup(ctx, claims, creds)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return s.lookupProfile(ctx, *record)
	}

	// Session store had nothing usable; fall back to the token claims and
	// let the bounded profile lookup decide.
	if claims == nil {
		return nil, ErrAuthRequired
	}
	return s.lookupProfile(ctx, SessionRecord{
		SID:    claims.SID,
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
	})
}

// fastSessionLookup checks the session store. It returns a record on a hit,
// nil on a plain miss, and ErrSessionExpired after invalidating the local
// session when the presented refresh token is stale.
func (s *AuthService) fastSessionLookup(ctx context.Context, claims *accessClaims, creds Credentials) (*SessionRecord, error) {
	if claims != nil {
		record, err := s.sessions.Get(ctx, claims.SID)
		if err == nil {
			if s.now().Before(record.ExpiresAt) {
				return &record, nil
			}
		} else if !errors.Is(err, ErrSessionNotFound) {
			log.Warn().Err(err).Msg("Session lookup failed, falling back to identity check")
			return nil, nil
		}
	}

	if creds.RefreshToken == "" {
		return nil, nil
	}

	record, err := s.sessions.GetByRefreshToken(ctx, creds.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			if claims != nil {
				if delErr := s.sessions.Delete(ctx, claims.SID); delErr != nil {
					log.Warn().Err(delErr).Msg("Failed to invalidate local session")
				}
			}
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if s.now().After(record.ExpiresAt) {
		if delErr := s.sessions.Delete(ctx, record.SID); delErr != nil {
			log.Warn().Err(delErr).Msg("Failed to invalidate expired session")
		}
		return nil, ErrSessionExpired
	}
	return &record, nil
}

// lookupProfile fetches the profile row under the configured timeout,
// retrying once after a fixed delay if the first attempt times out. A
// missing row is created lazily from the session record.
func (s *AuthService) lookupProfile(ctx context.Context, record SessionRecord) (*models.User, error) {
	for attempt := 1; ; attempt++ {
		lookupCtx, cancel := context.WithTimeout(ctx, s.policy.CheckTimeout)
		user, err := s.users.GetByID(lookupCtx, record.UserID)
		cancel()

		if err == nil {
			return user, nil
		}
		if errors.Is(err, ErrNotFound) {
			return s.createProfile(ctx, record)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to resolve identity: %w", err)
		}
		if attempt >= s.policy.MaxAttempts {
			log.Warn().Str("user_id", record.UserID).Int("attempts", attempt).
				Msg("Identity check timed out")
			return nil, fmt.Errorf("identity check timed out: %w", ErrAuthRequired)
		}

		log.Warn().Int("attempt", attempt).Msg("Identity check timed out, retrying")
		if err := s.sleep(ctx, s.policy.RetryDelay); err != nil {
			return nil, fmt.Errorf("identity check aborted: %w", ErrAuthRequired)
		}
	}
}

// createProfile creates a profile row for a session whose user row is absent
func (s *AuthService) createProfile(ctx context.Context, record SessionRecord) (*models.User, error) {
	now := s.now()
	name := record.Name
	if name == "" {
		name = "User"
	}
	user := &models.User{
		ID:        record.UserID,
		Email:     record.Email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	log.Info().Str("user_id", user.ID).Msg("Profile created for authenticated session")
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	sid, err := newOpaqueToken(20)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	refreshToken, err := newOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	record := SessionRecord{
		SID:       sid,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ExpiresAt: s.now().Add(s.jwtCfg.RefreshTTL),
	}
	if err := s.sessions.Create(ctx, record, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	accessToken, err := s.generateAccessToken(user, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// generateAccessToken signs an HS256 access token for a user session
func (s *AuthService) generateAccessToken(user *models.User, sid string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"sid":     sid,
		"email":   user.Email,
		"name":    user.Name,
		"exp":     s.now().Add(s.jwtCfg.AccessTTL).Unix(),
		"iat":     s.now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// parseAccessToken validates an access token and returns its claims
func (s *AuthService) parseAccessToken(tokenString string) (*accessClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, ok := mapClaims["user_id"].(string)
	if !ok {
		return nil, fmt.Errorf("user_id not found in token")
	}
	sid, ok := mapClaims["sid"].(string)
	if !ok {
		return nil, fmt.Errorf("sid not found in token")
	}
	email, _ := mapClaims["email"].(string)
	name, _ := mapClaims["name"].(string)

	return &accessClaims{UserID: userID, SID: sid, Email: email, Name: name}, nil
}

// newOpaqueToken returns byteLen random bytes hex encoded
func newOpaqueToken(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
