package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/promptkit/promptkit/internal/db"
	"github.com/promptkit/promptkit/internal/llm"
	"github.com/promptkit/promptkit/internal/session"
	"github.com/promptkit/promptkit/pkg/models"
)

// fakeProvider returns a canned reply or error.
type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls++
	return f.reply, f.err
}

// nopQueue satisfies session.Enqueuer; worker tests invoke handlers
// directly instead of going through the scheduler.
type nopQueue struct{}

func (nopQueue) EnqueueTx(ctx context.Context, tx *db.Store, kind string, payload interface{}) (int64, error) {
	return 1, nil
}

func (nopQueue) Nudge() {}

func testWorkers(t *testing.T, provider llm.Provider) (*Workers, *session.Manager) {
	t.Helper()

	store, err := db.NewStore(db.Config{
		Path:     filepath.Join(t.TempDir(), "worker.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	manager := session.NewManager(store, nopQueue{}, nil)
	return New(manager, provider), manager
}

func questionPayload(t *testing.T, sessionID string, transcript models.Transcript) []byte {
	t.Helper()
	data, err := json.Marshal(session.QuestionTaskPayload{SessionID: sessionID, Transcript: transcript})
	require.NoError(t, err)
	return data
}

func enhancePayload(t *testing.T, sessionID string) []byte {
	t.Helper()
	data, err := json.Marshal(session.EnhanceTaskPayload{SessionID: sessionID})
	require.NoError(t, err)
	return data
}

func TestHandleGenerateQuestion_WritesQuestion(t *testing.T) {
	provider := &fakeProvider{reply: "What platform should this run on?"}
	workers, manager := testWorkers(t, provider)
	ctx := context.Background()

	id, err := manager.StartSession(ctx, "Build a todo app", models.TypeInteractive, "")
	require.NoError(t, err)

	require.NoError(t, workers.HandleGenerateQuestion(ctx, questionPayload(t, id, nil)))

	questions, err := manager.GetQuestions(ctx, id)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "What platform should this run on?", questions[0].Question)
	assert.Equal(t, 0, questions[0].Position)
	assert.Equal(t, 1, provider.calls)
}

func TestHandleGenerateQuestion_FallbackOnProviderFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{name: "provider error", provider: &fakeProvider{err: errors.New("rate limited")}},
		{name: "empty output", provider: &fakeProvider{reply: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workers, manager := testWorkers(t, tt.provider)
			ctx := context.Background()

			id, err := manager.StartSession(ctx, "Build a todo app", models.TypeInteractive, "")
			require.NoError(t, err)

			// The session must not get stuck: a fallback question lands.
			require.NoError(t, workers.HandleGenerateQuestion(ctx, questionPayload(t, id, nil)))

			questions, err := manager.GetQuestions(ctx, id)
			require.NoError(t, err)
			require.Len(t, questions, 1)
			assert.Equal(t, FallbackQuestion, questions[0].Question)
		})
	}
}

func TestHandleGenerateQuestion_UnknownSession(t *testing.T) {
	workers, _ := testWorkers(t, &fakeProvider{reply: "irrelevant"})

	err := workers.HandleGenerateQuestion(context.Background(), questionPayload(t, "no-such-session", nil))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestHandleGenerateEnhanced_CompletesSession(t *testing.T) {
	provider := &fakeProvider{reply: "A thorough, well-specified todo application."}
	workers, manager := testWorkers(t, provider)
	ctx := context.Background()

	id, err := manager.StartSession(ctx, "Build a todo app", models.TypeInteractive, "")
	require.NoError(t, err)

	dialogue := []struct{ question, answer string }{
		{"What platform?", "Web"},
		{"Which users?", "Just me"},
		{"Offline support?", "Yes"},
	}
	for _, turn := range dialogue {
		require.NoError(t, manager.RecordQuestion(ctx, id, turn.question))
		require.NoError(t, manager.SubmitAnswer(ctx, id, turn.answer))
	}

	require.NoError(t, workers.HandleGenerateEnhanced(ctx, enhancePayload(t, id)))

	sess, err := manager.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, sess.Status)
	assert.Equal(t, "A thorough, well-specified todo application.", sess.EnhancedPrompt)
}

func TestHandleGenerateEnhanced_FallbackShipsOriginalPrompt(t *testing.T) {
	workers, manager := testWorkers(t, &fakeProvider{err: errors.New("outage")})
	ctx := context.Background()

	id, err := manager.StartSession(ctx, "Build a todo app", models.TypeOneShot, "")
	require.NoError(t, err)

	require.NoError(t, workers.HandleGenerateOneShot(ctx, enhancePayload(t, id)))

	sess, err := manager.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, sess.Status)
	assert.Equal(t, "Build a todo app", sess.EnhancedPrompt)
}

func TestHandleGenerateOneShot_CompletesWithoutQuestions(t *testing.T) {
	provider := &fakeProvider{reply: "A complete specification inferred from the idea."}
	workers, manager := testWorkers(t, provider)
	ctx := context.Background()

	id, err := manager.StartSession(ctx, "Build a todo app", models.TypeOneShot, "")
	require.NoError(t, err)

	require.NoError(t, workers.HandleGenerateOneShot(ctx, enhancePayload(t, id)))

	sess, err := manager.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, sess.Status)
	assert.Equal(t, "A complete specification inferred from the idea.", sess.EnhancedPrompt)

	questions, err := manager.GetQuestions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestQuestionMessages_TranscriptShape(t *testing.T) {
	transcript := models.Transcript{
		{Question: "What platform?", Answer: "Web", Answered: true},
		{Question: "Which users?"},
	}

	messages := questionMessages("Build a todo app", transcript)
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, `Original prompt: "Build a todo app"`)
	assert.Contains(t, messages[1].Content, "Q: What platform?\nA: Web")
	assert.Contains(t, messages[1].Content, "Q: Which users?\nA: Not answered yet")
	assert.Contains(t, messages[1].Content, "Ask one clarifying question:")
}

func TestOneShotMessages_NoTranscript(t *testing.T) {
	sess := &models.Session{
		OriginalPrompt: "Build a todo app",
		SelectedFormat: models.FormatMarkdown,
	}

	messages := oneShotMessages(sess)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "may NOT ask clarifying questions")
	assert.NotContains(t, messages[1].Content, "Q:")
}
