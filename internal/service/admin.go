package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/leavewise/compliance-server-go/internal/database"
	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/repository"
)

// AdminService backs the admin control surface: user CRUD, API key
// management, exports, stats, and storage maintenance.
type AdminService struct {
	db            *database.DB
	userRepo      repository.UserRepository
	codeRepo      repository.AccessCodeRepository
	convRepo      repository.ConversationRepository
	apiConfigRepo repository.APIConfigRepository
	settingRepo   repository.SettingRepository
}

// NewAdminService creates a new admin service
func NewAdminService(
	db *database.DB,
	userRepo repository.UserRepository,
	codeRepo repository.AccessCodeRepository,
	convRepo repository.ConversationRepository,
	apiConfigRepo repository.APIConfigRepository,
	settingRepo repository.SettingRepository,
) *AdminService {
	return &AdminService{
		db:            db,
		userRepo:      userRepo,
		codeRepo:      codeRepo,
		convRepo:      convRepo,
		apiConfigRepo: apiConfigRepo,
		settingRepo:   settingRepo,
	}
}

// Users

func (s *AdminService) GetUsers(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	users, err := s.userRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return users, total, nil
}

func (s *AdminService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error) {
	if params.AccessLevel != nil {
		switch *params.AccessLevel {
		case model.AccessLevelTrial, model.AccessLevelPaid, model.AccessLevelExpired:
		default:
			return nil, apperrors.InvalidInput("accessLevel", "must be trial, paid, or expired")
		}
	}

	user, err := s.userRepo.Update(ctx, id, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

// DeleteUser refuses admin targets and cascades the deletion to the
// user's sessions and conversations.
func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if user == nil {
		return apperrors.NotFound("User")
	}
	if user.IsAdmin {
		return apperrors.Forbidden("Admin accounts cannot be deleted")
	}

	if err := s.userRepo.DeleteCascade(ctx, id); err != nil {
		return apperrors.Database(err)
	}

	log.Info().Str("userId", id).Msg("user deleted")

	return nil
}

// API key

func (s *AdminService) SaveAPIKey(ctx context.Context, apiKey string) (*model.APIConfig, error) {
	if apiKey == "" {
		return nil, apperrors.MissingRequired("apiKey")
	}
	cfg, err := s.apiConfigRepo.SaveActive(ctx, apiKey)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().Str("apiConfigId", cfg.ID).Msg("upstream API key updated")

	return cfg, nil
}

func (s *AdminService) GetActiveAPIConfig(ctx context.Context) (*model.APIConfig, error) {
	cfg, err := s.apiConfigRepo.FindActive(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return cfg, nil
}

// Stats

type Stats struct {
	Users         int `json:"users"`
	AccessCodes   int `json:"accessCodes"`
	Conversations int `json:"conversations"`
	TotalRequests int `json:"totalRequests"`
}

func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	users, _ := s.userRepo.Count(ctx)
	stats.Users = users

	codes, _ := s.codeRepo.Count(ctx)
	stats.AccessCodes = codes

	convs, _ := s.convRepo.Count(ctx)
	stats.Conversations = convs

	if cfg, _ := s.apiConfigRepo.FindActive(ctx); cfg != nil {
		stats.TotalRequests = cfg.TotalRequests
	}

	return stats, nil
}

// Exports

const exportPageSize = 500

// ExportUsersCSV streams all users as tabular text.
func (s *AdminService) ExportUsersCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "email", "first_name", "last_name", "is_admin",
		"email_verified", "access_level", "created_at", "last_login_at",
	}); err != nil {
		return apperrors.Internal("failed to write export").WithCause(err)
	}

	for offset := 0; ; offset += exportPageSize {
		users, err := s.userRepo.FindAll(ctx, exportPageSize, offset)
		if err != nil {
			return apperrors.Database(err)
		}
		if len(users) == 0 {
			break
		}

		for _, u := range users {
			lastLogin := ""
			if u.LastLoginAt != nil {
				lastLogin = u.LastLoginAt.Format(time.RFC3339)
			}
			if err := cw.Write([]string{
				u.ID, u.Email, u.FirstName, u.LastName,
				strconv.FormatBool(u.IsAdmin),
				strconv.FormatBool(u.EmailVerified),
				string(u.AccessLevel),
				u.CreatedAt.Format(time.RFC3339),
				lastLogin,
			}); err != nil {
				return apperrors.Internal("failed to write export").WithCause(err)
			}
		}

		if len(users) < exportPageSize {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Internal("failed to write export").WithCause(err)
	}
	return nil
}

// ExportData is the structured full-data export payload. Password hashes
// and API keys never leave the store.
type ExportData struct {
	ExportedAt    time.Time            `json:"exportedAt"`
	Users         []model.User         `json:"users"`
	AccessCodes   []model.AccessCode   `json:"accessCodes"`
	Conversations []model.Conversation `json:"conversations"`
	Settings      []model.Setting      `json:"settings"`
}

func (s *AdminService) ExportAll(ctx context.Context) (*ExportData, error) {
	data := &ExportData{ExportedAt: time.Now()}

	var err error
	if data.Users, err = s.collectUsers(ctx); err != nil {
		return nil, apperrors.Database(err)
	}
	if data.AccessCodes, err = s.collectCodes(ctx); err != nil {
		return nil, apperrors.Database(err)
	}
	if data.Conversations, err = s.collectConversations(ctx); err != nil {
		return nil, apperrors.Database(err)
	}
	if data.Settings, err = s.settingRepo.FindByCategory(ctx, model.SettingCategoryAssistant); err != nil {
		return nil, apperrors.Database(err)
	}

	return data, nil
}

func (s *AdminService) collectUsers(ctx context.Context) ([]model.User, error) {
	var all []model.User
	for offset := 0; ; offset += exportPageSize {
		page, err := s.userRepo.FindAll(ctx, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}

func (s *AdminService) collectCodes(ctx context.Context) ([]model.AccessCode, error) {
	var all []model.AccessCode
	for offset := 0; ; offset += exportPageSize {
		page, err := s.codeRepo.FindAll(ctx, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}

func (s *AdminService) collectConversations(ctx context.Context) ([]model.Conversation, error) {
	var all []model.Conversation
	for offset := 0; ; offset += exportPageSize {
		page, err := s.convRepo.FindAll(ctx, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}

// Maintenance

// OptimizeStorage compacts the underlying store. VACUUM cannot run inside
// a transaction, so it goes straight through the connection.
func (s *AdminService) OptimizeStorage(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM ANALYZE`); err != nil {
		log.Error().Err(err).Msg("storage optimization failed")
		return apperrors.Database(err)
	}

	log.Info().Msg("storage optimization completed")

	return nil
}
