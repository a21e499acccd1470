package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
)

func TestSaveInstructions(t *testing.T) {
	t.Run("rejects unknown tool", func(t *testing.T) {
		svc := NewSettingsService(new(mockSettingRepo))

		_, err := svc.SaveInstructions(context.Background(), "texas", "text", "admin-1")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects oversized text", func(t *testing.T) {
		svc := NewSettingsService(new(mockSettingRepo))

		_, err := svc.SaveInstructions(context.Background(), model.ToolFederal,
			strings.Repeat("x", maxInstructionChars+1), "admin-1")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("last write wins through upsert", func(t *testing.T) {
		settingRepo := new(mockSettingRepo)
		settingRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(s model.Setting) bool {
			return s.Key == model.InstructionsKey(model.ToolCalifornia) &&
				s.Value == "new text" &&
				s.Category == model.SettingCategoryAssistant
		})).Return(&model.Setting{Value: "new text"}, nil)

		svc := NewSettingsService(settingRepo)

		saved, err := svc.SaveInstructions(context.Background(), model.ToolCalifornia, "new text", "admin-1")

		require.NoError(t, err)
		assert.Equal(t, "new text", saved.Value)
		settingRepo.AssertExpectations(t)
	})
}

func TestGetInstructions(t *testing.T) {
	t.Run("unset instructions read as empty", func(t *testing.T) {
		settingRepo := new(mockSettingRepo)
		settingRepo.On("Get", mock.Anything, model.InstructionsKey(model.ToolFederal)).
			Return(nil, nil)

		svc := NewSettingsService(settingRepo)

		text, err := svc.GetInstructions(context.Background(), model.ToolFederal)

		require.NoError(t, err)
		assert.Empty(t, text)
	})
}
