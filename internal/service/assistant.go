package service

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rs/zerolog/log"

	"github.com/leavewise/compliance-server-go/internal/assistant"
	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/repository"
	"github.com/leavewise/compliance-server-go/internal/util"
)

const (
	maxInputChars = 10000

	// Dollars per 1000 completion-API tokens.
	costPerThousandTokens = 0.002

	baseInstruction = "You are an HR compliance assistant. Analyze the " +
		"employee leave request below and explain which leave protections " +
		"apply, what notice and documentation the employer may require, and " +
		"what deadlines matter. Answer for HR professionals, cite the " +
		"relevant statute sections, and flag any facts that need " +
		"clarification before a determination can be made."

	federalPolicy = "Apply federal law only: the Family and Medical Leave " +
		"Act (FMLA), the Americans with Disabilities Act (ADA) as it bears " +
		"on leave as an accommodation, USERRA military leave, and the " +
		"Pregnant Workers Fairness Act. Do not apply any state statute."

	californiaPolicy = "Apply California law alongside federal law: the " +
		"California Family Rights Act (CFRA), Paid Sick Leave under the " +
		"Healthy Workplaces Act, Pregnancy Disability Leave (PDL), and San " +
		"Francisco or local ordinances where noted. Where California is " +
		"more protective than federal law, the California rule controls."
)

var toolPolicies = map[model.ToolName]string{
	model.ToolFederal:    federalPolicy,
	model.ToolCalifornia: californiaPolicy,
}

// CompletionResult is the outcome of one assistant exchange.
type CompletionResult struct {
	Conversation *model.Conversation `json:"conversation"`
	Response     string              `json:"response"`
	TokensUsed   int                 `json:"tokensUsed"`
	Cost         float64             `json:"cost"`
}

// AssistantService forwards validated leave questions to the upstream
// completion API and records the exchange.
type AssistantService struct {
	convRepo      repository.ConversationRepository
	apiConfigRepo repository.APIConfigRepository
	settingRepo   repository.SettingRepository
	newClient     assistant.ClientFactory
	model         string
	maxTokens     int
	temperature   float32
}

// NewAssistantService creates a new assistant service
func NewAssistantService(
	convRepo repository.ConversationRepository,
	apiConfigRepo repository.APIConfigRepository,
	settingRepo repository.SettingRepository,
	newClient assistant.ClientFactory,
	model string,
	maxTokens int,
	temperature float32,
) *AssistantService {
	return &AssistantService{
		convRepo:      convRepo,
		apiConfigRepo: apiConfigRepo,
		settingRepo:   settingRepo,
		newClient:     newClient,
		model:         model,
		maxTokens:     maxTokens,
		temperature:   temperature,
	}
}

// Complete validates the request, calls the upstream completion API, and
// on success persists the conversation and bumps the usage counters.
// Nothing is persisted when the upstream call fails.
func (s *AssistantService) Complete(ctx context.Context, toolName model.ToolName, inputText, callerID string) (*CompletionResult, error) {
	if !util.IsValidEnum(string(toolName), model.ValidToolNames()) {
		return nil, apperrors.InvalidInput("toolName", "must be federal or california")
	}
	if len(inputText) == 0 {
		return nil, apperrors.MissingRequired("inputText")
	}
	if len(inputText) > maxInputChars {
		return nil, apperrors.ValidationError("input text exceeds the 10000 character limit")
	}

	apiConfig, err := s.apiConfigRepo.FindActive(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if apiConfig == nil {
		return nil, apperrors.ServiceUnavailable("Assistant is not configured")
	}

	systemPrompt := s.systemPrompt(ctx, toolName)

	client := s.newClient(apiConfig.APIKey)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: inputText},
		},
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("userId", callerID).
			Str("tool", string(toolName)).
			Int("inputLen", len(inputText)).
			Msg("upstream completion failed")
		return nil, apperrors.Upstream(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "Empty completion response")
	}

	content := resp.Choices[0].Message.Content
	tokens := resp.Usage.TotalTokens
	cost := float64(tokens) / 1000 * costPerThousandTokens

	conv, err := s.convRepo.Create(ctx, model.CreateConversationParams{
		UserID:       callerID,
		ToolName:     toolName,
		InputText:    inputText,
		ResponseText: content,
		TokensUsed:   tokens,
		Cost:         cost,
	})
	if err != nil {
		log.Error().Err(err).Str("userId", callerID).Msg("persist conversation")
		return nil, apperrors.Database(err)
	}

	// Counter updates are best-effort; their failure must not fail the
	// completed exchange.
	if err := s.apiConfigRepo.IncrementUsage(ctx, apiConfig.ID); err != nil {
		log.Warn().Err(err).Str("apiConfigId", apiConfig.ID).Msg("increment usage counters")
	}

	return &CompletionResult{
		Conversation: conv,
		Response:     content,
		TokensUsed:   tokens,
		Cost:         cost,
	}, nil
}

// ListConversations returns the caller's own history, newest first.
func (s *AssistantService) ListConversations(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error) {
	convs, err := s.convRepo.FindByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return convs, nil
}

// TestKey performs a lightweight upstream call to report key validity.
// Nothing is persisted.
func (s *AssistantService) TestKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return apperrors.MissingRequired("apiKey")
	}

	client := s.newClient(apiKey)
	if _, err := client.ListModels(ctx); err != nil {
		return apperrors.Upstream(err)
	}
	return nil
}

func (s *AssistantService) systemPrompt(ctx context.Context, toolName model.ToolName) string {
	prompt := baseInstruction + "\n\n" + toolPolicies[toolName]

	// Custom instructions are optional; a lookup failure degrades to the
	// base prompt.
	setting, err := s.settingRepo.Get(ctx, model.InstructionsKey(toolName))
	if err != nil {
		log.Warn().Err(err).Str("tool", string(toolName)).Msg("load custom instructions")
		return prompt
	}
	if setting != nil && setting.Value != "" {
		prompt += "\n\n" + setting.Value
	}
	return prompt
}
