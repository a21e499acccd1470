package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/util"
)

const authTestSecret = "test-session-secret"

func TestRegister(t *testing.T) {
	t.Run("rejects invalid email", func(t *testing.T) {
		svc := &AuthService{userRepo: new(mockUserRepo), now: time.Now, sessionSecret: authTestSecret}

		_, err := svc.Register(context.Background(), RegisterParams{
			Email:    "not-an-email",
			Password: "longenough",
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects short password", func(t *testing.T) {
		svc := &AuthService{userRepo: new(mockUserRepo), now: time.Now, sessionSecret: authTestSecret}

		_, err := svc.Register(context.Background(), RegisterParams{
			Email:    "user@example.com",
			Password: "short",
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "user@example.com").
			Return(&model.User{ID: "existing"}, nil)

		svc := &AuthService{userRepo: userRepo, now: time.Now, sessionSecret: authTestSecret}

		_, err := svc.Register(context.Background(), RegisterParams{
			Email:    "User@Example.com",
			Password: "longenough",
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
		userRepo.AssertNotCalled(t, "Create")
	})

	t.Run("rejected access code leaves no account behind", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "user@example.com").Return(nil, nil)

		codeRepo := new(mockCodeRepo)
		codeRepo.On("FindByCode", mock.Anything, "OLDCODE2").Return(&model.AccessCode{
			ID:        "code-1",
			Code:      "OLDCODE2",
			ExpiresAt: time.Now().Add(-time.Hour),
		}, nil)

		svc := &AuthService{
			userRepo:      userRepo,
			codeService:   &AccessCodeService{codeRepo: codeRepo, now: time.Now},
			sessionSecret: authTestSecret,
			now:           time.Now,
		}

		_, err := svc.Register(context.Background(), RegisterParams{
			Email:      "user@example.com",
			Password:   "longenough",
			AccessCode: "OLDCODE2",
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAccessCodeExpired, apperrors.GetCode(err))
		userRepo.AssertNotCalled(t, "Create")
		codeRepo.AssertNotCalled(t, "Consume")
	})

	t.Run("valid access code upgrades the new account", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "user@example.com").Return(nil, nil)
		userRepo.On("Create", mock.Anything, mock.Anything).
			Return(&model.User{ID: "user-1", AccessLevel: model.AccessLevelTrial}, nil)
		userRepo.On("FindByID", mock.Anything, "user-1").
			Return(&model.User{ID: "user-1", AccessLevel: model.AccessLevelPaid}, nil)

		codeRepo := new(mockCodeRepo)
		codeRepo.On("FindByCode", mock.Anything, "GOODCODE").Return(&model.AccessCode{
			ID:        "code-1",
			Code:      "GOODCODE",
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)
		codeRepo.On("Consume", mock.Anything, "code-1", "user-1", model.AccessLevelPaid).
			Return(true, nil)

		svc := &AuthService{
			userRepo:      userRepo,
			codeService:   &AccessCodeService{codeRepo: codeRepo, now: time.Now},
			sessionSecret: authTestSecret,
			now:           time.Now,
		}

		user, err := svc.Register(context.Background(), RegisterParams{
			Email:      "user@example.com",
			Password:   "longenough",
			AccessCode: "goodcode",
		})

		require.NoError(t, err)
		assert.Equal(t, model.AccessLevelPaid, user.AccessLevel)
		codeRepo.AssertExpectations(t)
	})

	t.Run("new account starts on trial access", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "user@example.com").Return(nil, nil)
		userRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateUserParams) bool {
			return p.Email == "user@example.com" &&
				p.AccessLevel == model.AccessLevelTrial &&
				p.PasswordHash != "longenough"
		})).Return(&model.User{ID: "user-1", AccessLevel: model.AccessLevelTrial}, nil)

		svc := &AuthService{userRepo: userRepo, now: time.Now, sessionSecret: authTestSecret}

		user, err := svc.Register(context.Background(), RegisterParams{
			Email:    " User@Example.com ",
			Password: "longenough",
		})

		require.NoError(t, err)
		assert.Equal(t, model.AccessLevelTrial, user.AccessLevel)
		userRepo.AssertExpectations(t)
	})
}

func TestLogin(t *testing.T) {
	passwordHash, err := util.HashPassword("correct-password")
	require.NoError(t, err)

	testUser := &model.User{
		ID:           "user-1",
		Email:        "user@example.com",
		PasswordHash: passwordHash,
	}

	t.Run("unknown email and wrong password fail identically", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "missing@example.com").Return(nil, nil)
		userRepo.On("FindByEmail", mock.Anything, "user@example.com").Return(testUser, nil)

		svc := &AuthService{userRepo: userRepo, now: time.Now, sessionSecret: authTestSecret}

		_, _, _, errUnknown := svc.Login(context.Background(), "missing@example.com", "whatever")
		_, _, _, errWrong := svc.Login(context.Background(), "user@example.com", "wrong-password")

		require.Error(t, errUnknown)
		require.Error(t, errWrong)
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(errUnknown))
	})

	t.Run("success stores only the token hash", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "user@example.com").Return(testUser, nil)
		userRepo.On("UpdateLastLogin", mock.Anything, "user-1").Return(nil)

		var capturedToken string
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.UserID == "user-1" && p.CSRFToken != "" && p.TokenHash != ""
		})).Return(&model.Session{ID: "sess-1", UserID: "user-1", CSRFToken: "csrf"}, nil)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		svc := &AuthService{
			userRepo:      userRepo,
			sessionRepo:   sessionRepo,
			sessionSecret: authTestSecret,
			now:           fixedClock(now),
		}

		user, session, token, err := svc.Login(context.Background(), "user@example.com", "correct-password")

		require.NoError(t, err)
		require.NotNil(t, user)
		require.NotNil(t, session)
		require.NotEmpty(t, token)
		capturedToken = token

		// The raw token never matches what was persisted.
		call := sessionRepo.Calls[0]
		params := call.Arguments.Get(1).(model.CreateSessionParams)
		assert.NotEqual(t, capturedToken, params.TokenHash)
		assert.Equal(t, util.HmacSHA256(authTestSecret, capturedToken), params.TokenHash)
		assert.Equal(t, now.Add(24*time.Hour), params.ExpiresAt)
	})
}

func TestAuthenticate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := "session-token"
	tokenHash := util.HmacSHA256(authTestSecret, token)

	t.Run("empty token resolves to no session", func(t *testing.T) {
		svc := &AuthService{sessionSecret: authTestSecret, now: fixedClock(now)}

		user, session, err := svc.Authenticate(context.Background(), "")

		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Nil(t, session)
	})

	t.Run("expired session is evicted on access", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindByTokenHash", mock.Anything, tokenHash).Return(&model.Session{
			ID:        "sess-old",
			UserID:    "user-1",
			ExpiresAt: now.Add(-time.Minute),
		}, nil)
		sessionRepo.On("Delete", mock.Anything, "sess-old").Return(nil)

		svc := &AuthService{
			sessionRepo:   sessionRepo,
			sessionSecret: authTestSecret,
			now:           fixedClock(now),
		}

		user, session, err := svc.Authenticate(context.Background(), token)

		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Nil(t, session)
		sessionRepo.AssertCalled(t, "Delete", mock.Anything, "sess-old")
	})

	t.Run("valid session resolves its user", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindByTokenHash", mock.Anything, tokenHash).Return(&model.Session{
			ID:        "sess-1",
			UserID:    "user-1",
			ExpiresAt: now.Add(time.Hour),
		}, nil)
		userRepo := new(mockUserRepo)
		userRepo.On("FindByID", mock.Anything, "user-1").
			Return(&model.User{ID: "user-1"}, nil)

		svc := &AuthService{
			userRepo:      userRepo,
			sessionRepo:   sessionRepo,
			sessionSecret: authTestSecret,
			now:           fixedClock(now),
		}

		user, session, err := svc.Authenticate(context.Background(), token)

		require.NoError(t, err)
		require.NotNil(t, user)
		require.NotNil(t, session)
		assert.Equal(t, "user-1", user.ID)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("request for unknown email reports success and sends nothing", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "missing@example.com").Return(nil, nil)
		mailer := new(mockMailer)

		svc := &AuthService{
			userRepo:      userRepo,
			mailer:        mailer,
			sessionSecret: authTestSecret,
			now:           fixedClock(now),
		}

		err := svc.RequestPasswordReset(context.Background(), "missing@example.com")

		require.NoError(t, err)
		mailer.AssertNotCalled(t, "SendPasswordReset")
	})

	t.Run("request for known email stores hash and mails raw token", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByEmail", mock.Anything, "user@example.com").
			Return(&model.User{ID: "user-1", Email: "user@example.com"}, nil)

		resetRepo := new(mockResetRepo)
		resetRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreatePasswordResetParams) bool {
			return p.Email == "user@example.com" && p.ExpiresAt.Equal(now.Add(time.Hour))
		})).Return(&model.PasswordReset{ID: "reset-1"}, nil)

		mailer := new(mockMailer)
		mailer.On("SendPasswordReset", mock.Anything, "user@example.com", mock.Anything).Return(nil)

		svc := &AuthService{
			userRepo:      userRepo,
			resetRepo:     resetRepo,
			mailer:        mailer,
			sessionSecret: authTestSecret,
			now:           fixedClock(now),
		}

		err := svc.RequestPasswordReset(context.Background(), "user@example.com")

		require.NoError(t, err)

		// The stored hash must not equal the token that was mailed.
		storedHash := resetRepo.Calls[0].Arguments.Get(1).(model.CreatePasswordResetParams).TokenHash
		mailedToken := mailer.Calls[0].Arguments.Get(2).(string)
		assert.NotEqual(t, mailedToken, storedHash)
		assert.Equal(t, util.HashToken(mailedToken), storedHash)
	})

	t.Run("reset rejects short password", func(t *testing.T) {
		svc := &AuthService{sessionSecret: authTestSecret, now: fixedClock(now)}

		err := svc.ResetPassword(context.Background(), "some-token", "short")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("token works once", func(t *testing.T) {
		resetRepo := new(mockResetRepo)
		resetRepo.On("ConsumeAndSetPassword", mock.Anything, mock.Anything, mock.Anything).
			Return(true, nil).Once()
		resetRepo.On("ConsumeAndSetPassword", mock.Anything, mock.Anything, mock.Anything).
			Return(false, nil).Once()

		svc := &AuthService{
			resetRepo:     resetRepo,
			sessionSecret: authTestSecret,
			now:           fixedClock(now),
		}

		require.NoError(t, svc.ResetPassword(context.Background(), "reset-token", "newpassword"))

		err := svc.ResetPassword(context.Background(), "reset-token", "newpassword")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidResetToken, apperrors.GetCode(err))
	})
}
