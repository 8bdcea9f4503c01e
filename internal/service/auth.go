package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jwt-auth-demo/internal/hash"
	"jwt-auth-demo/internal/logging"
	"jwt-auth-demo/internal/models"
	"jwt-auth-demo/internal/repo"
	"jwt-auth-demo/internal/token"
)

var (
	ErrUsernameTaken = errors.New("username already exists")

	// ErrInvalidCredentials covers both unknown username and wrong password,
	// so a caller cannot probe which usernames exist.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidRefreshToken covers unknown, revoked and expired tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// ConflictError carries every uniqueness violation found during admin
// creation, so the caller sees all of them at once instead of the first.
type ConflictError struct {
	Errors []string
}

func (e *ConflictError) Error() string {
	return strings.Join(e.Errors, "; ")
}

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *token.AccessIssuer
}

func NewAuthService(r *repo.GormRepo, issuer *token.AccessIssuer) *AuthService {
	return &AuthService{Repo: r, Tokens: issuer}
}

type LoginResult struct {
	AccessToken  string
	Role         string
	RefreshToken string
	RefreshExp   time.Time
}

// Register creates a user with the default role. It never logs the new
// account in.
func (s *AuthService) Register(ctx context.Context, username, password, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	taken, err := s.Repo.UsernameTaken(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
	}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		// Lost the check-then-act race: the unique index decided.
		if errors.Is(err, repo.ErrDuplicateUser) {
			return ErrUsernameTaken
		}
		return err
	}

	l.Info("user_registered", "user_id", user.ID, "username", user.Username)
	return nil
}

// Login verifies credentials, issues an access token and persists a fresh
// refresh token valid for token.RefreshTokenTTL.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	accessToken, _, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := token.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExp := time.Now().Add(token.RefreshTokenTTL)
	if err := s.Repo.SaveRefreshToken(ctx, refreshToken, user.ID, refreshExp); err != nil {
		return nil, err
	}

	l.Info("user_logged_in", "user_id", user.ID)
	return &LoginResult{
		AccessToken:  accessToken,
		Role:         user.Role,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// presented refresh token stays usable until logout or natural expiry; it is
// not rotated here.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	stored, err := s.Repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repo.ErrRefreshNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}
	if stored.Revoked || time.Now().Unix() >= stored.ExpiresAt {
		return "", ErrInvalidRefreshToken
	}

	user, err := s.Repo.UserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}

	accessToken, _, err := s.Tokens.Issue(user)
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// Logout revokes the refresh token. Unknown and already-revoked tokens are
// silent no-ops.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.Repo.RevokeRefreshToken(ctx, refreshToken)
}

// CreateAdmin creates a user with the Admin role. Both uniqueness checks run
// before failing so the response carries every violation. Role gating happens
// in the transport layer before this is ever called.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.create_admin")

	var violations []string
	taken, err := s.Repo.UsernameTaken(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		violations = append(violations, "Username already exists")
	}
	taken, err = s.Repo.EmailTaken(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		violations = append(violations, "Email already exists")
	}
	if len(violations) > 0 {
		return &ConflictError{Errors: violations}
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleAdmin,
	}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrDuplicateUser) {
			return &ConflictError{Errors: []string{"Username or email already exists"}}
		}
		return err
	}

	l.Info("admin_created", "user_id", user.ID, "username", user.Username)
	return nil
}
