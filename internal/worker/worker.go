// Package worker implements the asynchronous generation handlers.
package worker

import (
	"context"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/promptkit/promptkit/internal/llm"
	"github.com/promptkit/promptkit/internal/metrics"
	"github.com/promptkit/promptkit/internal/scheduler"
	"github.com/promptkit/promptkit/internal/session"
	"github.com/promptkit/promptkit/pkg/models"
)

// Workers hosts the three generation handlers. The provider client is
// constructed once at process start and shared across all handlers.
type Workers struct {
	manager  *session.Manager
	provider llm.Provider
}

// New creates the generation workers.
func New(manager *session.Manager, provider llm.Provider) *Workers {
	return &Workers{manager: manager, provider: provider}
}

// Register binds the handlers to their task kinds.
func (w *Workers) Register(sched *scheduler.Scheduler) {
	sched.Register(session.TaskGenerateQuestion, w.HandleGenerateQuestion)
	sched.Register(session.TaskGenerateEnhanced, w.HandleGenerateEnhanced)
	sched.Register(session.TaskGenerateOneShot, w.HandleGenerateOneShot)
}

// HandleGenerateQuestion generates the next clarifying question from
// the transcript snapshot carried in the task payload and writes it
// back at the session's current step.
func (w *Workers) HandleGenerateQuestion(ctx context.Context, payload []byte) error {
	var p session.QuestionTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}

	sess, err := w.manager.GetSession(ctx, p.SessionID)
	if err != nil {
		return err
	}

	text := w.complete(ctx, questionMessages(sess.OriginalPrompt, p.Transcript), FallbackQuestion)
	return w.manager.RecordQuestion(ctx, p.SessionID, text)
}

// HandleGenerateEnhanced generates the enhanced prompt for an
// interactive session. Only the session ID travels in the payload;
// the transcript is re-read here so the handler sees every answer
// committed before it was scheduled.
func (w *Workers) HandleGenerateEnhanced(ctx context.Context, payload []byte) error {
	var p session.EnhanceTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}

	sess, err := w.manager.GetSession(ctx, p.SessionID)
	if err != nil {
		return err
	}

	questions, err := w.manager.GetQuestions(ctx, p.SessionID)
	if err != nil {
		return err
	}
	transcript := make(models.Transcript, 0, len(questions))
	for _, q := range questions {
		transcript = append(transcript, models.QA{
			Question: q.Question,
			Answer:   q.Answer,
			Answered: q.Answered,
		})
	}

	// On provider failure the original prompt ships unchanged; the
	// session still reaches a terminal, exportable state.
	text := w.complete(ctx, enhanceMessages(sess, transcript), sess.OriginalPrompt)
	return w.manager.RecordEnhanced(ctx, p.SessionID, text)
}

// HandleGenerateOneShot generates the enhanced prompt for a one-shot
// session directly from the original prompt, with no dialogue.
func (w *Workers) HandleGenerateOneShot(ctx context.Context, payload []byte) error {
	var p session.EnhanceTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}

	sess, err := w.manager.GetSession(ctx, p.SessionID)
	if err != nil {
		return err
	}

	text := w.complete(ctx, oneShotMessages(sess), sess.OriginalPrompt)
	return w.manager.RecordEnhanced(ctx, p.SessionID, text)
}

// complete performs the single provider attempt and applies the
// fallback policy: any error or empty output yields the fallback
// text. Worker errors never propagate to the command that scheduled
// the task.
func (w *Workers) complete(ctx context.Context, messages []llm.Message, fallback string) string {
	text, err := w.provider.Complete(ctx, messages)
	if err != nil {
		metrics.ProviderFailure(ctx)
		log.Warn().Err(err).Msg("Provider call failed, using fallback output")
		return fallback
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.ProviderFailure(ctx)
		log.Warn().Msg("Provider returned empty output, using fallback output")
		return fallback
	}
	return text
}
