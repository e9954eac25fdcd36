package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"readthis-backend/internal/metrics"
	"readthis-backend/internal/models"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

// NoRecommendations is returned in place of an empty or failed answer
const NoRecommendations = "No recommendations found."

const recommendMaxTokens = 300

// RecommendService asks a chat-completion API for books similar to a title
type RecommendService struct {
	apiURL  string
	apiKey  string
	model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]string]
}

// NewRecommendService creates a new recommendation service
func NewRecommendService(apiURL, apiKey, model string, client *http.Client) *RecommendService {
	return &RecommendService{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		client: client,
		breaker: gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
			Name:        "recommendations",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Recommend returns one line per recommended book. Upstream failures are logged and
// answered with a single NoRecommendations line.
func (s *RecommendService) Recommend(ctx context.Context, bookTitle string) ([]string, error) {
	bookTitle = strings.TrimSpace(bookTitle)
	if bookTitle == "" {
		return nil, models.NewValidationError("Book title is required.")
	}

	lines, err := s.breaker.Execute(func() ([]string, error) {
		return s.complete(ctx, bookTitle)
	})
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("title", bookTitle).Msg("Failed to fetch book recommendations")
		return []string{NoRecommendations}, nil
	}
	if len(lines) == 0 {
		metrics.RecommendationRequests.WithLabelValues("empty").Inc()
		return []string{NoRecommendations}, nil
	}

	metrics.RecommendationRequests.WithLabelValues("ok").Inc()
	return lines, nil
}

func (s *RecommendService) complete(ctx context.Context, bookTitle string) ([]string, error) {
	if s.apiKey == "" {
		return nil, errors.New("recommendation api key is missing")
	}

	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful AI assistant that recommends books."},
			{Role: "user", Content: fmt.Sprintf("Can you find for me 5-10 books in the same genre as %s? Provide book name, author, and a short description for each.", bookTitle)},
		},
		MaxTokens: recommendMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from recommendation api", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, nil
	}

	return SplitLines(out.Choices[0].Message.Content), nil
}

// SplitLines splits text on newlines and drops blank lines
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimRight(line, "\r"))
		}
	}
	return lines
}
