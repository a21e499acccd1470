package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/leavewise/compliance-server-go/internal/config"
	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/mail"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/repository"
	"github.com/leavewise/compliance-server-go/internal/util"
)

// Burned on lookups for unknown emails so a missing account costs the
// same bcrypt comparison as a wrong password.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// RegisterParams carries the inputs for self-service registration.
type RegisterParams struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	AccessCode string
}

// AuthService authenticates requests, manages session lifecycle, and
// runs the password reset flow.
type AuthService struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	resetRepo     repository.PasswordResetRepository
	codeService   *AccessCodeService
	mailer        mail.Mailer
	rateLimiter   *RateLimiter
	sessionSecret string
	now           func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	resetRepo repository.PasswordResetRepository,
	codeService *AccessCodeService,
	mailer mail.Mailer,
	rateLimiter *RateLimiter,
	sessionSecret string,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		resetRepo:     resetRepo,
		codeService:   codeService,
		mailer:        mailer,
		rateLimiter:   rateLimiter,
		sessionSecret: sessionSecret,
		now:           time.Now,
	}
}

// Register creates a user account. When an access code is supplied it is
// redeemed in the same flow; otherwise the account starts on trial access.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if !util.IsValidEmail(email) {
		return nil, apperrors.InvalidInput("email", "must be a valid email address")
	}
	if len(params.Password) < config.MinPasswordChars {
		return nil, apperrors.ValidationError(fmt.Sprintf("password must be at least %d characters", config.MinPasswordChars))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("An account with this email already exists")
	}

	// A supplied code is checked before the account row exists, so a
	// rejected code does not leave a half-registered account that blocks
	// the email on retry.
	if params.AccessCode != "" {
		if _, err := s.codeService.Validate(ctx, params.AccessCode); err != nil {
			return nil, err
		}
	}

	passwordHash, err := util.HashPassword(params.Password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password").WithCause(err)
	}

	user, err := s.userRepo.Create(ctx, model.CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		AccessLevel:  model.AccessLevelTrial,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("An account with this email already exists")
		}
		return nil, apperrors.Database(err)
	}

	if params.AccessCode != "" {
		if _, err := s.codeService.Redeem(ctx, params.AccessCode, user.ID); err != nil {
			return nil, err
		}
		user, err = s.userRepo.FindByID(ctx, user.ID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
	}

	log.Info().Str("userId", user.ID).Msg("user registered")

	return user, nil
}

// Login verifies the credential and creates a new 24-hour session with a
// bound CSRF token. Failures are uniform and do not reveal whether the
// email exists.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, *model.Session, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, "", apperrors.Database(err)
	}
	if user == nil {
		util.CheckPasswordHash(password, dummyPasswordHash)
		return nil, nil, "", apperrors.Unauthorized("Invalid email or password")
	}
	if !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil, "", apperrors.Unauthorized("Invalid email or password")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, nil, "", apperrors.Internal("failed to generate session token").WithCause(err)
	}
	csrfToken, err := util.GenerateToken()
	if err != nil {
		return nil, nil, "", apperrors.Internal("failed to generate CSRF token").WithCause(err)
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		TokenHash: util.HmacSHA256(s.sessionSecret, token),
		CSRFToken: csrfToken,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(config.SessionTTL),
	})
	if err != nil {
		return nil, nil, "", apperrors.Database(err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("update last login")
	}

	return user, session, token, nil
}

// Authenticate resolves a session token to its user. Expired sessions are
// deleted on access and never reinstated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, *model.Session, error) {
	if token == "" {
		return nil, nil, nil
	}

	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token))
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, nil, nil
	}

	if session.IsExpired(s.now()) {
		if err := s.sessionRepo.Delete(ctx, session.ID); err != nil {
			log.Warn().Err(err).Str("sessionId", session.ID).Msg("evict expired session")
		}
		return nil, nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, nil, nil
	}

	return user, session, nil
}

// Logout deletes the session for the given token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessionRepo.DeleteByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token))
}

// RequestPasswordReset always reports success so responses cannot be used
// to enumerate accounts. A reset row and mail dispatch happen only when
// the account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !util.IsValidEmail(email) {
		return apperrors.InvalidInput("email", "must be a valid email address")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		log.Error().Err(err).Msg("password reset lookup")
		return nil
	}
	if user == nil {
		return nil
	}

	token, err := util.GenerateToken()
	if err != nil {
		log.Error().Err(err).Msg("generate reset token")
		return nil
	}

	_, err = s.resetRepo.Create(ctx, model.CreatePasswordResetParams{
		TokenHash: util.HashToken(token),
		Email:     email,
		ExpiresAt: s.now().Add(config.ResetTokenTTL),
	})
	if err != nil {
		log.Error().Err(err).Msg("create password reset")
		return nil
	}

	if err := s.mailer.SendPasswordReset(ctx, email, token); err != nil {
		log.Error().Err(err).Msg("send password reset mail")
	}

	return nil
}

// VerifyResetToken reports whether a reset token is still valid without
// consuming it.
func (s *AuthService) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	reset, err := s.resetRepo.FindActiveByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return false, apperrors.Database(err)
	}
	return reset != nil, nil
}

// ResetPassword consumes a reset token and writes the new password hash.
// A second concurrent call with the same token fails.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < config.MinPasswordChars {
		return apperrors.ValidationError(fmt.Sprintf("password must be at least %d characters", config.MinPasswordChars))
	}

	passwordHash, err := util.HashPassword(newPassword)
	if err != nil {
		return apperrors.Internal("failed to hash password").WithCause(err)
	}

	consumed, err := s.resetRepo.ConsumeAndSetPassword(ctx, util.HashToken(token), passwordHash)
	if err != nil {
		return apperrors.Database(err)
	}
	if !consumed {
		return apperrors.InvalidResetToken()
	}

	log.Info().Msg("password reset completed")

	return nil
}

// CheckLoginLimit checks if login attempts are allowed for an IP.
// Limit: 5 times per minute per IP.
func (s *AuthService) CheckLoginLimit(ctx context.Context, ip string) (allowed bool, resetAt time.Time) {
	if s.rateLimiter == nil {
		return true, time.Time{}
	}
	return s.rateLimiter.CheckLimit(ctx, fmt.Sprintf("login:%s", ip), 5, time.Minute)
}

// CheckResetLimit checks if password reset requests are allowed for an IP.
// Limit: 3 times per 5 minutes per IP.
func (s *AuthService) CheckResetLimit(ctx context.Context, ip string) (allowed bool, resetAt time.Time) {
	if s.rateLimiter == nil {
		return true, time.Time{}
	}
	return s.rateLimiter.CheckLimit(ctx, fmt.Sprintf("reset:%s", ip), 3, 5*time.Minute)
}
