// Package session implements the session lifecycle controller: the
// transactional commands that drive the questioning state machine and
// the write-back commands the generation workers report through.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/promptkit/promptkit/internal/db"
	"github.com/promptkit/promptkit/internal/metrics"
	"github.com/promptkit/promptkit/pkg/models"
)

// Command-level errors, surfaced to the caller synchronously.
var (
	// ErrSessionNotFound is returned when a command names a session
	// that does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrQuestionNotFound is returned when no unanswered question
	// exists at the session's current step. A concurrent submission
	// that loses the race for the open question fails with this too.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrEmptyInput is returned when a command receives blank text.
	ErrEmptyInput = errors.New("input must not be empty")

	// ErrInvalidArgument is returned when a command receives a value
	// outside its enumeration, such as an unknown session type.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Task kinds dispatched to the generation workers.
const (
	TaskGenerateQuestion = "generate_question"
	TaskGenerateEnhanced = "generate_enhanced"
	TaskGenerateOneShot  = "generate_oneshot"
)

// QuestionTaskPayload carries the transcript snapshot for the question
// generator. The snapshot is assembled inside submitAnswer so the
// worker never races against the just-committed answer.
type QuestionTaskPayload struct {
	SessionID  string            `json:"session_id"`
	Transcript models.Transcript `json:"transcript"`
}

// EnhanceTaskPayload names the session for the enhanced-prompt and
// one-shot generators; both re-read state at execution time.
type EnhanceTaskPayload struct {
	SessionID string `json:"session_id"`
}

// Enqueuer is the scheduler surface the controller needs. Tasks are
// enqueued through the command's own transaction so the task row and
// the command's writes commit or roll back together; Nudge wakes the
// dispatcher once the commit is durable.
type Enqueuer interface {
	EnqueueTx(ctx context.Context, tx *db.Store, kind string, payload interface{}) (int64, error)
	Nudge()
}

// Notifier receives session lifecycle events for streaming to clients.
type Notifier interface {
	SessionUpdated(sessionID string, event string)
}

// Manager owns the session/question state machine.
type Manager struct {
	store     *db.Store
	sessions  *db.SessionStore
	questions *db.QuestionStore
	sched     Enqueuer
	notifier  Notifier
}

// NewManager creates a session lifecycle manager. notifier may be nil.
func NewManager(store *db.Store, sched Enqueuer, notifier Notifier) *Manager {
	return &Manager{
		store:     store,
		sessions:  db.NewSessionStore(store),
		questions: db.NewQuestionStore(store),
		sched:     sched,
		notifier:  notifier,
	}
}

// StartSession creates a session and enqueues exactly one generation
// task: the first clarifying question for interactive sessions, the
// one-shot refinement otherwise. Returns the new session ID.
func (m *Manager) StartSession(ctx context.Context, prompt string, sessType models.SessionType, format models.ExportFormat) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt", ErrEmptyInput)
	}
	if sessType == "" {
		sessType = models.TypeInteractive
	}
	if !sessType.Valid() {
		return "", fmt.Errorf("%w: session type %q", ErrInvalidArgument, sessType)
	}
	if format == "" {
		format = models.FormatMarkdown
	}
	if !format.Valid() {
		return "", fmt.Errorf("%w: export format %q", ErrInvalidArgument, format)
	}

	status := models.StatusQuestioning
	if sessType == models.TypeOneShot {
		status = models.StatusEnhancing
	}

	sess := &models.Session{
		ID:             uuid.NewString(),
		OriginalPrompt: prompt,
		SessionType:    sessType,
		Status:         status,
		CurrentStep:    0,
		SelectedFormat: format,
	}

	// The session row and its generation task commit together: a crash
	// between them cannot produce a session nothing will ever advance.
	err := m.store.Transaction(ctx, func(tx *db.Store) error {
		if err := db.NewSessionStore(tx).Create(ctx, sess); err != nil {
			return err
		}

		var err error
		if sessType == models.TypeOneShot {
			_, err = m.sched.EnqueueTx(ctx, tx, TaskGenerateOneShot, EnhanceTaskPayload{SessionID: sess.ID})
		} else {
			_, err = m.sched.EnqueueTx(ctx, tx, TaskGenerateQuestion, QuestionTaskPayload{
				SessionID:  sess.ID,
				Transcript: models.Transcript{},
			})
		}
		if err != nil {
			return fmt.Errorf("schedule generation: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	m.sched.Nudge()

	metrics.SessionStarted(ctx)
	log.Info().
		Str("sessionId", sess.ID).
		Str("type", string(sessType)).
		Msg("Session started")
	return sess.ID, nil
}

// SubmitAnswer attaches the answer to the current open question and
// advances the session one step. Crossing the question cap flips the
// session into enhancing and schedules the enhanced-prompt generator;
// otherwise the next-question generator is scheduled with a transcript
// snapshot. Exactly one of the two tasks is enqueued per call.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID, answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fmt.Errorf("%w: answer", ErrEmptyInput)
	}

	sess, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if sess.SessionType != models.TypeInteractive || sess.Status != models.StatusQuestioning {
		return ErrQuestionNotFound
	}

	nextStep := sess.CurrentStep + 1

	// Answer claim, step advance, and the follow-up task commit as one
	// transaction: either the session moves forward with its next task
	// durably queued, or nothing happened at all.
	err = m.store.Transaction(ctx, func(tx *db.Store) error {
		sessions := db.NewSessionStore(tx)
		questions := db.NewQuestionStore(tx)

		// Single-winner claim on the open question. The losing side of
		// a concurrent submission matches no row and fails here.
		claimed, err := questions.AttachAnswer(ctx, sessionID, sess.CurrentStep, answer)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrQuestionNotFound
		}

		if nextStep >= models.MaxQuestions {
			if err := sessions.AdvanceStep(ctx, sessionID, sess.CurrentStep, nextStep, models.StatusEnhancing); err != nil {
				if errors.Is(err, db.ErrStale) {
					return ErrQuestionNotFound
				}
				return err
			}
			if _, err := m.sched.EnqueueTx(ctx, tx, TaskGenerateEnhanced, EnhanceTaskPayload{SessionID: sessionID}); err != nil {
				return fmt.Errorf("schedule enhancement: %w", err)
			}
			return nil
		}

		if err := sessions.AdvanceStep(ctx, sessionID, sess.CurrentStep, nextStep, models.StatusQuestioning); err != nil {
			if errors.Is(err, db.ErrStale) {
				return ErrQuestionNotFound
			}
			return err
		}

		transcript, err := transcriptFrom(ctx, questions, sessionID)
		if err != nil {
			return err
		}
		if _, err := m.sched.EnqueueTx(ctx, tx, TaskGenerateQuestion, QuestionTaskPayload{
			SessionID:  sessionID,
			Transcript: transcript,
		}); err != nil {
			return fmt.Errorf("schedule next question: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.sched.Nudge()

	metrics.AnswerSubmitted(ctx)
	log.Info().
		Str("sessionId", sessionID).
		Int("step", nextStep).
		Msg("Answer recorded")
	return nil
}

// RecordQuestion is the write-back command for the question generator.
// The target position is read fresh from the session, not trusted from
// the moment the task was scheduled. Duplicate task delivery is
// absorbed by the (session, position) uniqueness guard.
func (m *Manager) RecordQuestion(ctx context.Context, sessionID, text string) error {
	sess, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if sess.Status != models.StatusQuestioning {
		// The session moved on while generation was in flight; a new
		// question would violate the one-open-question invariant.
		log.Warn().
			Str("sessionId", sessionID).
			Str("status", string(sess.Status)).
			Msg("Dropping generated question for session no longer questioning")
		return nil
	}

	if _, err := m.questions.Insert(ctx, sessionID, sess.CurrentStep, text); err != nil {
		if errors.Is(err, db.ErrDuplicateQuestion) {
			log.Warn().
				Str("sessionId", sessionID).
				Int("position", sess.CurrentStep).
				Msg("Duplicate question write-back ignored")
			return nil
		}
		return err
	}

	m.notify(sessionID, "question_ready")
	return nil
}

// RecordEnhanced is the write-back command for the enhanced-prompt and
// one-shot generators: it sets the enhanced prompt and forces the
// session to complete. A duplicate delivery finds the prompt already
// set and is a no-op.
func (m *Manager) RecordEnhanced(ctx context.Context, sessionID, text string) error {
	wrote, err := m.sessions.SetEnhanced(ctx, sessionID, text)
	if err != nil {
		return err
	}
	if !wrote {
		sess, err := m.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return ErrSessionNotFound
		}
		log.Warn().Str("sessionId", sessionID).Msg("Duplicate enhanced-prompt write-back ignored")
		return nil
	}

	metrics.SessionCompleted(ctx)
	m.notify(sessionID, "session_complete")
	log.Info().Str("sessionId", sessionID).Msg("Session complete")
	return nil
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetQuestions returns a session's questions ordered by position.
func (m *Manager) GetQuestions(ctx context.Context, sessionID string) ([]*models.Question, error) {
	if _, err := m.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.questions.ListBySession(ctx, sessionID)
}

// transcriptFrom builds the question/answer history for a session,
// read through the given store so a transactional caller sees its own
// uncommitted writes.
func transcriptFrom(ctx context.Context, store *db.QuestionStore, sessionID string) (models.Transcript, error) {
	questions, err := store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	transcript := make(models.Transcript, 0, len(questions))
	for _, q := range questions {
		transcript = append(transcript, models.QA{
			Question: q.Question,
			Answer:   q.Answer,
			Answered: q.Answered,
		})
	}
	return transcript, nil
}

func (m *Manager) notify(sessionID, event string) {
	if m.notifier != nil {
		m.notifier.SessionUpdated(sessionID, event)
	}
}
