package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"tribunal/internal/evidence"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
	"tribunal/internal/store"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// DefaultModel is used when OPENAI_MODEL is not set.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures the language-model panel.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// RequestsPerSecond is shared by the whole panel. Zero means 2.
	RequestsPerSecond float64
}

// OpenAIConfigFromEnv reads OPENAI_API_KEY, OPENAI_MODEL and
// OPENAI_BASE_URL.
func OpenAIConfigFromEnv() (OpenAIConfig, error) {
	cfg := OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	if cfg.APIKey == "" {
		return cfg, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
		slog.Warn("OPENAI_MODEL not set, using default", "model", DefaultModel)
	}
	return cfg, nil
}

// OpenAI is a judge backed by a chat-completion model.
type OpenAI struct {
	seat    evidence.JudgeRole
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// OpenAIPanel returns three judges sharing one client and one request
// rate limit.
func OpenAIPanel(cfg OpenAIConfig) []Judge {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	out := make([]Judge, 0, len(evidence.Roles))
	for _, r := range evidence.Roles {
		out = append(out, &OpenAI{
			seat:    r,
			client:  client,
			model:   model,
			limiter: limiter,
			logger:  logging.New("judge").With("seat", r, "model", model),
		})
	}
	return out
}

func (o *OpenAI) Role() evidence.JudgeRole { return o.seat }

// verdict is the JSON object the model must return.
type verdict struct {
	Score         int      `json:"score"`
	Argument      string   `json:"argument"`
	CitedEvidence []string `json:"cited_evidence"`
}

func (o *OpenAI) Evaluate(ctx context.Context, c rubric.Criterion, ev *store.EvidenceSnapshot) (evidence.Opinion, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return evidence.Opinion{}, fmt.Errorf("rate limit: %w", err)
	}
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: personaPrompt(o.seat)},
			{Role: openai.ChatMessageRoleUser, Content: criterionPrompt(c, Summarize(c.ID, ev))},
		},
	}

	o.logger.Debug("requesting opinion", "criterion", c.ID)
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return evidence.Opinion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return evidence.Opinion{}, errors.New("model returned no choices")
	}

	var v verdict
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(stripFence(content)), &v); err != nil {
		return evidence.Opinion{}, fmt.Errorf("parse opinion: %w", err)
	}
	if v.Score < evidence.MinScore || v.Score > evidence.MaxScore {
		return evidence.Opinion{}, fmt.Errorf("model score %d outside [%d,%d]", v.Score, evidence.MinScore, evidence.MaxScore)
	}
	return evidence.Opinion{
		Role:          o.seat,
		CriterionID:   c.ID,
		Score:         v.Score,
		Rationale:     v.Argument,
		CitedEvidence: v.CitedEvidence,
	}, nil
}

// stripFence removes a Markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
