package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/repository"
	"github.com/leavewise/compliance-server-go/internal/util"
)

const (
	// Excludes easily-confused glyphs (0/O, 1/I/L).
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	minCodeLength     = 4
	defaultCodeLength = 8
	createAttempts    = 5
)

// IssueCodeParams carries the inputs for issuing a new access code.
type IssueCodeParams struct {
	Length       int
	Duration     int
	DurationType model.DurationType
	Description  string
	IssuerID     string
}

// AccessCodeService issues, redeems, and revokes redeemable codes that
// grant trial or paid access.
type AccessCodeService struct {
	codeRepo repository.AccessCodeRepository
	now      func() time.Time
}

// NewAccessCodeService creates a new access code service
func NewAccessCodeService(codeRepo repository.AccessCodeRepository) *AccessCodeService {
	return &AccessCodeService{
		codeRepo: codeRepo,
		now:      time.Now,
	}
}

// Issue draws a random code over the unambiguous alphabet and persists it
// with an expiry derived from the duration.
func (s *AccessCodeService) Issue(ctx context.Context, params IssueCodeParams) (*model.AccessCode, error) {
	if params.Length == 0 {
		params.Length = defaultCodeLength
	}
	if params.Length < minCodeLength {
		return nil, apperrors.ValidationError(fmt.Sprintf("code length must be at least %d", minCodeLength))
	}
	if params.Duration <= 0 {
		return nil, apperrors.ValidationError("duration must be positive")
	}
	if !util.IsValidEnum(string(params.DurationType), model.ValidDurationTypes()) {
		return nil, apperrors.InvalidInput("durationType", "must be days or months")
	}

	expiresAt := s.expiry(params.Duration, params.DurationType)

	// Collisions are resolved by the uniqueness constraint: retry with a
	// fresh draw instead of pre-checking.
	var created *model.AccessCode
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := generateCode(params.Length)
		if err != nil {
			return nil, apperrors.Internal("failed to generate code").WithCause(err)
		}

		created, err = s.codeRepo.Create(ctx, model.CreateAccessCodeParams{
			Code:         code,
			Description:  params.Description,
			Duration:     params.Duration,
			DurationType: params.DurationType,
			CreatedBy:    params.IssuerID,
			ExpiresAt:    expiresAt,
		})
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) {
			continue
		}
		log.Error().Err(err).Str("issuerId", params.IssuerID).Msg("create access code")
		return nil, apperrors.Database(err)
	}
	if created == nil {
		return nil, apperrors.Internal("could not generate a unique access code")
	}

	log.Info().
		Str("code", util.MaskCode(created.Code)).
		Str("issuerId", params.IssuerID).
		Time("expiresAt", created.ExpiresAt).
		Msg("access code issued")

	return created, nil
}

// Validate resolves a code and reports whether it is still redeemable,
// without consuming it.
func (s *AccessCodeService) Validate(ctx context.Context, code string) (*model.AccessCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	ac, err := s.codeRepo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if ac == nil {
		return nil, apperrors.NotFound("Access code")
	}

	// Expiry wins over consumed state: a code past its expiry always
	// reads as expired.
	if ac.IsExpired(s.now()) {
		return nil, apperrors.AccessCodeExpired()
	}
	if ac.IsConsumed() {
		return nil, apperrors.AccessCodeConsumed()
	}

	return ac, nil
}

// Redeem consumes an access code and upgrades the registrant's access
// level. Consumption and the upgrade are one unit of persistence, so two
// concurrent redemptions of the same code cannot both succeed.
func (s *AccessCodeService) Redeem(ctx context.Context, code, userID string) (*model.AccessCode, error) {
	ac, err := s.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	consumed, err := s.codeRepo.Consume(ctx, ac.ID, userID, model.AccessLevelPaid)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("consume access code")
		return nil, apperrors.Database(err)
	}
	if !consumed {
		// Lost the race against a concurrent redemption.
		return nil, apperrors.AccessCodeConsumed()
	}

	log.Info().
		Str("code", util.MaskCode(ac.Code)).
		Str("userId", userID).
		Msg("access code redeemed")

	return ac, nil
}

// Revoke deletes a code by id regardless of state. Deleting a
// non-existent id is not an error.
func (s *AccessCodeService) Revoke(ctx context.Context, id string) error {
	if err := s.codeRepo.Delete(ctx, id); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// List returns issued codes, newest first.
func (s *AccessCodeService) List(ctx context.Context, limit, offset int) ([]model.AccessCode, int, error) {
	codes, err := s.codeRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.codeRepo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return codes, total, nil
}

func (s *AccessCodeService) expiry(duration int, durationType model.DurationType) time.Time {
	now := s.now()
	if durationType == model.DurationMonths {
		return now.AddDate(0, duration, 0)
	}
	return now.AddDate(0, 0, duration)
}

func generateCode(length int) (string, error) {
	chars := []byte(codeAlphabet)
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		code[i] = chars[n.Int64()]
	}
	return string(code), nil
}
