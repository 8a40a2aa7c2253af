package session

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/promptkit/promptkit/pkg/models"
)

// Stats aggregates completed-session totals for the dashboard.
type Stats struct {
	TotalSessions    int     `json:"total_sessions"`
	TotalQuestions   int     `json:"total_questions"`
	AvgQuestions     float64 `json:"avg_questions"`
	OriginalTokens   int     `json:"original_tokens"`
	EnhancedTokens   int     `json:"enhanced_tokens"`
	PercentReduction float64 `json:"percent_reduction"`
}

// codec counts tokens for the stats projection. Falls back to
// character counts when the encoding is unavailable.
var codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)

func countTokens(text string) int {
	if codecErr != nil || codec == nil {
		return len(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return len(text)
	}
	return len(ids)
}

// ListCompleted returns completed sessions, newest first, each with
// its question count and token accounting.
func (m *Manager) ListCompleted(ctx context.Context) ([]*models.CompletedSession, error) {
	completed, err := m.sessions.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range completed {
		c.OriginalTokens = countTokens(c.OriginalPrompt)
		c.EnhancedTokens = countTokens(c.EnhancedPrompt)
	}
	return completed, nil
}

// Stats computes dashboard totals across all completed sessions.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	completed, err := m.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalSessions: len(completed)}
	for _, c := range completed {
		stats.TotalQuestions += c.QuestionCount
		stats.OriginalTokens += c.OriginalTokens
		stats.EnhancedTokens += c.EnhancedTokens
	}
	if stats.TotalSessions > 0 {
		stats.AvgQuestions = float64(stats.TotalQuestions) / float64(stats.TotalSessions)
	}
	if stats.OriginalTokens > 0 && stats.EnhancedTokens < stats.OriginalTokens {
		saved := stats.OriginalTokens - stats.EnhancedTokens
		stats.PercentReduction = float64(saved) / float64(stats.OriginalTokens) * 100
	}

	if codecErr != nil {
		log.Debug().Err(codecErr).Msg("Tokenizer unavailable, stats use character counts")
	}
	return stats, nil
}
