package db

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/promptkit/promptkit/pkg/models"
)

// SessionStoreSuite is a test suite for SessionStore operations.
type SessionStoreSuite struct {
	suite.Suite
	store    *Store
	sessions *SessionStore
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = testStore(s.T())
	s.sessions = NewSessionStore(s.store)
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func (s *SessionStoreSuite) newSession(sessType models.SessionType, status models.SessionStatus) *models.Session {
	sess := &models.Session{
		ID:             uuid.NewString(),
		OriginalPrompt: "Build a todo app",
		SessionType:    sessType,
		Status:         status,
		SelectedFormat: models.FormatMarkdown,
	}
	s.Require().NoError(s.sessions.Create(context.Background(), sess))
	return sess
}

// TestCreateAndGet tests round-tripping a session.
func (s *SessionStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	created := s.newSession(models.TypeInteractive, models.StatusQuestioning)

	got, err := s.sessions.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(created.ID, got.ID)
	s.Equal("Build a todo app", got.OriginalPrompt)
	s.Equal(models.TypeInteractive, got.SessionType)
	s.Equal(models.StatusQuestioning, got.Status)
	s.Equal(0, got.CurrentStep)
	s.False(got.Enhanced())
	s.NotEmpty(got.CreatedAt)
}

// TestGetByID_Missing returns nil for an unknown session.
func (s *SessionStoreSuite) TestGetByID_Missing() {
	got, err := s.sessions.GetByID(context.Background(), "no-such-session")
	s.NoError(err)
	s.Nil(got)
}

// TestAdvanceStep_CAS tests the compare-and-set on current_step.
func (s *SessionStoreSuite) TestAdvanceStep_CAS() {
	ctx := context.Background()
	sess := s.newSession(models.TypeInteractive, models.StatusQuestioning)

	s.Require().NoError(s.sessions.AdvanceStep(ctx, sess.ID, 0, 1, models.StatusQuestioning))

	// A second advance from the same step must lose the race.
	err := s.sessions.AdvanceStep(ctx, sess.ID, 0, 1, models.StatusQuestioning)
	s.ErrorIs(err, ErrStale)

	got, err := s.sessions.GetByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(1, got.CurrentStep)
}

// TestAdvanceStep_StatusTransition tests the flip into enhancing.
func (s *SessionStoreSuite) TestAdvanceStep_StatusTransition() {
	ctx := context.Background()
	sess := s.newSession(models.TypeInteractive, models.StatusQuestioning)

	s.Require().NoError(s.sessions.AdvanceStep(ctx, sess.ID, 0, 1, models.StatusQuestioning))
	s.Require().NoError(s.sessions.AdvanceStep(ctx, sess.ID, 1, 2, models.StatusQuestioning))
	s.Require().NoError(s.sessions.AdvanceStep(ctx, sess.ID, 2, 3, models.StatusEnhancing))

	got, err := s.sessions.GetByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusEnhancing, got.Status)
	s.Equal(3, got.CurrentStep)
}

// TestSetEnhanced tests the idempotent enhanced-prompt write-back.
func (s *SessionStoreSuite) TestSetEnhanced() {
	ctx := context.Background()
	sess := s.newSession(models.TypeOneShot, models.StatusEnhancing)

	wrote, err := s.sessions.SetEnhanced(ctx, sess.ID, "A refined prompt")
	s.Require().NoError(err)
	s.True(wrote)

	// Duplicate delivery matches no row.
	wrote, err = s.sessions.SetEnhanced(ctx, sess.ID, "A different prompt")
	s.Require().NoError(err)
	s.False(wrote)

	got, err := s.sessions.GetByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal("A refined prompt", got.EnhancedPrompt)
	s.Equal(models.StatusComplete, got.Status)
}

// TestListCompleted tests the completed-session projection.
func (s *SessionStoreSuite) TestListCompleted() {
	ctx := context.Background()
	questions := NewQuestionStore(s.store)

	// One completed session with two questions.
	done := s.newSession(models.TypeInteractive, models.StatusQuestioning)
	_, err := questions.Insert(ctx, done.ID, 0, "What platform?")
	s.Require().NoError(err)
	_, err = questions.Insert(ctx, done.ID, 1, "Which users?")
	s.Require().NoError(err)
	wrote, err := s.sessions.SetEnhanced(ctx, done.ID, "Enhanced")
	s.Require().NoError(err)
	s.Require().True(wrote)

	// One still questioning, which must not appear.
	s.newSession(models.TypeInteractive, models.StatusQuestioning)

	completed, err := s.sessions.ListCompleted(ctx)
	s.Require().NoError(err)
	s.Require().Len(completed, 1)
	s.Equal(done.ID, completed[0].ID)
	s.Equal(2, completed[0].QuestionCount)
	s.Equal("Enhanced", completed[0].EnhancedPrompt)
}
