package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

const (
	DefaultChatModel   = "gemini-2.0-flash"
	DefaultTemperature = 0.4
)

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeneratorConfig selects the chat model and its sampling and safety settings.
type GeneratorConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Safety          []SafetySetting
}

// Generator answers prompts with a Gemini chat model.
type Generator struct {
	models contentGenerator
	model  string
	config *genai.GenerateContentConfig
	log    *logger.Logger
}

func NewGenerator(client *genai.Client, cfg GeneratorConfig, log *logger.Logger) (*Generator, error) {
	return newGenerator(client.Models, cfg, log)
}

func newGenerator(models contentGenerator, cfg GeneratorConfig, log *logger.Logger) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	safety, err := toGenai(cfg.Safety)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	temperature := cfg.Temperature
	return &Generator{
		models: models,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			SafetySettings:  safety,
		},
		log: log,
	}, nil
}

// Generate sends prompt as a single user turn and returns the reply text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		g.log.Warn("generate content failed", "model", g.model, "error", err)
		return "", fmt.Errorf("%w: %s", domain.ErrGeneration, Describe(err))
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked (%s)", domain.ErrContentBlocked, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", domain.ErrGeneration)
	}
	cand := resp.Candidates[0]
	if blockedFinish(cand.FinishReason) {
		return "", fmt.Errorf("%w: response stopped (%s)", domain.ErrContentBlocked, cand.FinishReason)
	}
	return candidateText(cand), nil
}

func blockedFinish(r genai.FinishReason) bool {
	switch r {
	case genai.FinishReasonSafety,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonBlocklist,
		genai.FinishReasonSPII,
		genai.FinishReasonImageSafety:
		return true
	}
	return false
}

func candidateText(c *genai.Candidate) string {
	if c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
