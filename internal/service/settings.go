package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/repository"
	"github.com/leavewise/compliance-server-go/internal/util"
)

const maxInstructionChars = 10000

// SettingsService reads and writes site settings. Last write wins.
type SettingsService struct {
	settingRepo repository.SettingRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(settingRepo repository.SettingRepository) *SettingsService {
	return &SettingsService{settingRepo: settingRepo}
}

// Get returns a single setting, or nil when unset.
func (s *SettingsService) Get(ctx context.Context, key string) (*model.Setting, error) {
	setting, err := s.settingRepo.Get(ctx, key)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return setting, nil
}

// ListByCategory returns all settings in a category.
func (s *SettingsService) ListByCategory(ctx context.Context, category string) ([]model.Setting, error) {
	settings, err := s.settingRepo.FindByCategory(ctx, category)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return settings, nil
}

// Save upserts a setting.
func (s *SettingsService) Save(ctx context.Context, key, value, category, updatedBy string) (*model.Setting, error) {
	if key == "" {
		return nil, apperrors.MissingRequired("key")
	}

	saved, err := s.settingRepo.Upsert(ctx, model.Setting{
		Key:       key,
		Value:     value,
		Category:  category,
		UpdatedBy: updatedBy,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().Str("key", key).Str("updatedBy", updatedBy).Msg("setting saved")

	return saved, nil
}

// SaveInstructions validates and stores the admin-supplied custom
// instruction text appended to the assistant's prompt for one tool.
func (s *SettingsService) SaveInstructions(ctx context.Context, tool model.ToolName, text, updatedBy string) (*model.Setting, error) {
	if !util.IsValidEnum(string(tool), model.ValidToolNames()) {
		return nil, apperrors.InvalidInput("toolName", "must be federal or california")
	}
	if len(text) > maxInstructionChars {
		return nil, apperrors.ValidationError("instruction text exceeds the 10000 character limit")
	}

	return s.Save(ctx, model.InstructionsKey(tool), text, model.SettingCategoryAssistant, updatedBy)
}

// GetInstructions returns the custom instruction text for a tool, or
// empty when unset.
func (s *SettingsService) GetInstructions(ctx context.Context, tool model.ToolName) (string, error) {
	if !util.IsValidEnum(string(tool), model.ValidToolNames()) {
		return "", apperrors.InvalidInput("toolName", "must be federal or california")
	}
	setting, err := s.Get(ctx, model.InstructionsKey(tool))
	if err != nil {
		return "", err
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}
