package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
)

func TestDeleteUser(t *testing.T) {
	t.Run("unknown user reports not found", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByID", mock.Anything, "missing").Return(nil, nil)

		svc := &AdminService{userRepo: userRepo}

		err := svc.DeleteUser(context.Background(), "missing")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("admin accounts cannot be deleted", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByID", mock.Anything, "admin-1").
			Return(&model.User{ID: "admin-1", IsAdmin: true}, nil)

		svc := &AdminService{userRepo: userRepo}

		err := svc.DeleteUser(context.Background(), "admin-1")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
		userRepo.AssertNotCalled(t, "DeleteCascade")
	})

	t.Run("deletion cascades to sessions and conversations", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		userRepo.On("FindByID", mock.Anything, "user-1").
			Return(&model.User{ID: "user-1"}, nil)
		userRepo.On("DeleteCascade", mock.Anything, "user-1").Return(nil)

		svc := &AdminService{userRepo: userRepo}

		require.NoError(t, svc.DeleteUser(context.Background(), "user-1"))
		userRepo.AssertExpectations(t)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("rejects unknown access level", func(t *testing.T) {
		level := model.AccessLevel("premium")
		svc := &AdminService{userRepo: new(mockUserRepo)}

		_, err := svc.UpdateUser(context.Background(), "user-1", model.UpdateUserParams{
			AccessLevel: &level,
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("valid update passes through", func(t *testing.T) {
		level := model.AccessLevelPaid
		userRepo := new(mockUserRepo)
		userRepo.On("Update", mock.Anything, "user-1", mock.Anything).
			Return(&model.User{ID: "user-1", AccessLevel: level}, nil)

		svc := &AdminService{userRepo: userRepo}

		user, err := svc.UpdateUser(context.Background(), "user-1", model.UpdateUserParams{
			AccessLevel: &level,
		})

		require.NoError(t, err)
		assert.Equal(t, model.AccessLevelPaid, user.AccessLevel)
	})
}

func TestSaveAPIKey(t *testing.T) {
	t.Run("empty key is rejected", func(t *testing.T) {
		svc := &AdminService{apiConfigRepo: new(mockAPIConfigRepo)}

		_, err := svc.SaveAPIKey(context.Background(), "")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("save makes the new key active", func(t *testing.T) {
		apiConfigRepo := new(mockAPIConfigRepo)
		apiConfigRepo.On("SaveActive", mock.Anything, "sk-new").
			Return(&model.APIConfig{ID: "cfg-2", IsActive: true}, nil)

		svc := &AdminService{apiConfigRepo: apiConfigRepo}

		cfg, err := svc.SaveAPIKey(context.Background(), "sk-new")

		require.NoError(t, err)
		assert.True(t, cfg.IsActive)
	})
}

func TestExportUsersCSV(t *testing.T) {
	lastLogin := time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
	users := []model.User{
		{
			ID:          "user-1",
			Email:       "a@example.com",
			FirstName:   "Ada",
			LastName:    "Lovelace",
			AccessLevel: model.AccessLevelPaid,
			CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			LastLoginAt: &lastLogin,
		},
		{
			ID:          "user-2",
			Email:       "b@example.com",
			AccessLevel: model.AccessLevelTrial,
			CreatedAt:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	userRepo := new(mockUserRepo)
	userRepo.On("FindAll", mock.Anything, exportPageSize, 0).Return(users, nil)

	svc := &AdminService{userRepo: userRepo}

	var buf bytes.Buffer
	require.NoError(t, svc.ExportUsersCSV(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "id,email,first_name")
	assert.Contains(t, out, "a@example.com")
	assert.Contains(t, out, "2025-05-20T09:30:00Z")
	// Never-logged-in users export an empty last_login_at.
	assert.Contains(t, out, "b@example.com,,,false,false,trial,2025-02-01T00:00:00Z,\n")
	assert.NotContains(t, out, "password")
}

func TestGetStats(t *testing.T) {
	userRepo := new(mockUserRepo)
	userRepo.On("Count", mock.Anything).Return(12, nil)
	codeRepo := new(mockCodeRepo)
	codeRepo.On("Count", mock.Anything).Return(4, nil)
	convRepo := new(mockConvRepo)
	convRepo.On("Count", mock.Anything).Return(87, nil)
	apiConfigRepo := new(mockAPIConfigRepo)
	apiConfigRepo.On("FindActive", mock.Anything).
		Return(&model.APIConfig{ID: "cfg-1", TotalRequests: 87}, nil)

	svc := &AdminService{
		userRepo:      userRepo,
		codeRepo:      codeRepo,
		convRepo:      convRepo,
		apiConfigRepo: apiConfigRepo,
	}

	stats, err := svc.GetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 12, stats.Users)
	assert.Equal(t, 4, stats.AccessCodes)
	assert.Equal(t, 87, stats.Conversations)
	assert.Equal(t, 87, stats.TotalRequests)
}
