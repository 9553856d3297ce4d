// Package triage содержит логику бизнес-уровня первичной оценки:
// подсчёт полноты intake-анкеты, проверку рисковых сообщений через
// moderation, извлечение полей анкеты из свободного текста и выбор
// следующего режима диалога.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gdohealth/chat-backend/internal/lib/sl"
)

// ErrNotConfigured возвращается, когда ключ OpenAI не задан, а операция
// требует обращения к модели.
var ErrNotConfigured = errors.New("openai api key is not configured")

// Веса полей intake-анкеты. Сумма весов заполненных полей — оценка
// полноты; при достижении порога анкета считается достаточной для
// перехода к рекомендациям.
var fieldWeights = map[string]int{
	"symptoms":          3,
	"duration":          2,
	"triggers":          2,
	"intensity":         1,
	"frequency":         1,
	"impact_on_life":    2,
	"coping_mechanisms": 1,
}

// CompleteThreshold — минимальная оценка, при которой intake завершён.
const CompleteThreshold = 6

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 3
)

// ScoreResult — результат подсчёта полноты анкеты.
type ScoreResult struct {
	Score    int      `json:"score"`
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing_fields"`
}

// RiskResult — результат проверки сообщения на рисковый контент.
type RiskResult struct {
	Flagged    bool     `json:"flagged"`
	Categories []string `json:"categories,omitempty"`
}

// ModeResult — рекомендованный следующий режим диалога.
type ModeResult struct {
	Mode     string `json:"mode"`
	Fallback bool   `json:"fallback,omitempty"`
}

// OpenAIClient описывает используемое подмножество клиента OpenAI.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	Moderations(ctx context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error)
}

// Service отвечает за первичную оценку и маршрутизацию диалога.
type Service struct {
	client OpenAIClient
	log    *slog.Logger
}

// New создает новый экземпляр Service. client может быть nil, тогда
// операции, требующие модели, возвращают ErrNotConfigured либо fallback.
func New(client OpenAIClient, log *slog.Logger) *Service {
	return &Service{client: client, log: log}
}

// IntakeScore считает оценку полноты анкеты по весам заполненных полей.
// Поле считается заполненным, если его значение — непустая строка.
func (s *Service) IntakeScore(_ context.Context, fields map[string]string) *ScoreResult {
	result := &ScoreResult{Missing: []string{}}
	for field, weight := range fieldWeights {
		if strings.TrimSpace(fields[field]) != "" {
			result.Score += weight
		} else {
			result.Missing = append(result.Missing, field)
		}
	}
	result.Complete = result.Score >= CompleteThreshold
	return result
}

// RiskCheck прогоняет сообщение через moderation и возвращает флаг
// рискового контента с категориями.
func (s *Service) RiskCheck(ctx context.Context, message string) (*RiskResult, error) {
	const op = "services.triage.RiskCheck"

	if s.client == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := s.client.Moderations(ctx, openai.ModerationRequest{
		Model: openai.ModerationTextStable,
		Input: message,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Results) == 0 {
		return &RiskResult{}, nil
	}

	mod := resp.Results[0]
	result := &RiskResult{Flagged: mod.Flagged}
	if mod.Categories.SelfHarm || mod.Categories.SelfHarmIntent || mod.Categories.SelfHarmInstructions {
		result.Categories = append(result.Categories, "self-harm")
	}
	if mod.Categories.Violence || mod.Categories.ViolenceGraphic {
		result.Categories = append(result.Categories, "violence")
	}
	return result, nil
}

// ExtractFields извлекает поля intake-анкеты из свободного текста.
// Модель просят вернуть строго JSON; ответ с мусором повторяется,
// всего не больше трёх попыток.
func (s *Service) ExtractFields(ctx context.Context, message string) (map[string]string, error) {
	const op = "services.triage.ExtractFields"

	if s.client == nil {
		return nil, ErrNotConfigured
	}

	prompt := "Extract intake fields from the user message. " +
		"Respond with a JSON object whose keys are a subset of: " +
		"symptoms, duration, triggers, intensity, frequency, impact_on_life, coping_mechanisms. " +
		"Values are short strings quoted from the message. Respond with JSON only.\n\n" +
		"Message: " + message

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		resp, err := s.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model: openai.GPT4oMini,
			Messages: []openai.ChatCompletionMessage{{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			}},
			MaxTokens: 300,
		})
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("empty completion")
			continue
		}

		fields := map[string]string{}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if err := json.Unmarshal([]byte(content), &fields); err != nil {
			s.log.Warn("model returned non-json extraction",
				slog.Int("attempt", attempt), sl.Err(err))
			lastErr = err
			continue
		}
		// Неизвестные ключи отбрасываются
		for field := range fields {
			if _, ok := fieldWeights[field]; !ok {
				delete(fields, field)
			}
		}
		return fields, nil
	}
	return nil, fmt.Errorf("%s: %w", op, lastErr)
}

// SwitchMode выбирает следующий режим диалога по заполненности анкеты.
// При недоступной модели или неожиданном ответе возвращается advice.
func (s *Service) SwitchMode(ctx context.Context, currentMode string, fields map[string]string) *ModeResult {
	score := s.IntakeScore(ctx, fields)
	if currentMode == "intake" && !score.Complete {
		return &ModeResult{Mode: "intake"}
	}

	if s.client == nil {
		return &ModeResult{Mode: "advice", Fallback: true}
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	prompt := fmt.Sprintf("Current conversation mode is %q, intake completeness score is %d. "+
		"Choose the next mode. Respond with exactly one word: advice, reflection or summary.",
		currentMode, score.Score)
	resp, err := s.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
		MaxTokens: 5,
	})
	if err != nil || len(resp.Choices) == 0 {
		s.log.Warn("mode selection fell back to advice", sl.Err(err))
		return &ModeResult{Mode: "advice", Fallback: true}
	}

	mode := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	switch mode {
	case "advice", "reflection", "summary":
		return &ModeResult{Mode: mode}
	default:
		return &ModeResult{Mode: "advice", Fallback: true}
	}
}
