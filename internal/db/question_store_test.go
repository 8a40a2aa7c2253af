package db

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/promptkit/promptkit/pkg/models"
)

// QuestionStoreSuite is a test suite for QuestionStore operations.
type QuestionStoreSuite struct {
	suite.Suite
	store     *Store
	sessions  *SessionStore
	questions *QuestionStore
	sessionID string
}

func (s *QuestionStoreSuite) SetupTest() {
	s.store = testStore(s.T())
	s.sessions = NewSessionStore(s.store)
	s.questions = NewQuestionStore(s.store)

	sess := &models.Session{
		ID:             uuid.NewString(),
		OriginalPrompt: "Build a todo app",
		SessionType:    models.TypeInteractive,
		Status:         models.StatusQuestioning,
		SelectedFormat: models.FormatMarkdown,
	}
	s.Require().NoError(s.sessions.Create(context.Background(), sess))
	s.sessionID = sess.ID
}

func TestQuestionStoreSuite(t *testing.T) {
	suite.Run(t, new(QuestionStoreSuite))
}

// TestInsert_DuplicatePosition tests the uniqueness guard.
func (s *QuestionStoreSuite) TestInsert_DuplicatePosition() {
	ctx := context.Background()

	id, err := s.questions.Insert(ctx, s.sessionID, 0, "What platform?")
	s.Require().NoError(err)
	s.Positive(id)

	// A duplicate write-back at the same position must be rejected.
	_, err = s.questions.Insert(ctx, s.sessionID, 0, "What platform, again?")
	s.ErrorIs(err, ErrDuplicateQuestion)

	got, err := s.questions.GetByPosition(ctx, s.sessionID, 0)
	s.Require().NoError(err)
	s.Equal("What platform?", got.Question)
}

// TestAttachAnswer_SingleWinner tests the answer IS NULL claim.
func (s *QuestionStoreSuite) TestAttachAnswer_SingleWinner() {
	ctx := context.Background()
	_, err := s.questions.Insert(ctx, s.sessionID, 0, "What platform?")
	s.Require().NoError(err)

	claimed, err := s.questions.AttachAnswer(ctx, s.sessionID, 0, "Web")
	s.Require().NoError(err)
	s.True(claimed)

	// A second submission for the same question must lose.
	claimed, err = s.questions.AttachAnswer(ctx, s.sessionID, 0, "Mobile")
	s.Require().NoError(err)
	s.False(claimed)

	got, err := s.questions.GetByPosition(ctx, s.sessionID, 0)
	s.Require().NoError(err)
	s.Equal("Web", got.Answer)
	s.True(got.Answered)
}

// TestAttachAnswer_NoQuestion reports no claim when nothing exists at
// the position.
func (s *QuestionStoreSuite) TestAttachAnswer_NoQuestion() {
	claimed, err := s.questions.AttachAnswer(context.Background(), s.sessionID, 5, "Answer")
	s.NoError(err)
	s.False(claimed)
}

// TestListBySession_Ordered returns questions in position order.
func (s *QuestionStoreSuite) TestListBySession_Ordered() {
	ctx := context.Background()

	// Insert out of order.
	_, err := s.questions.Insert(ctx, s.sessionID, 2, "Third?")
	s.Require().NoError(err)
	_, err = s.questions.Insert(ctx, s.sessionID, 0, "First?")
	s.Require().NoError(err)
	_, err = s.questions.Insert(ctx, s.sessionID, 1, "Second?")
	s.Require().NoError(err)

	list, err := s.questions.ListBySession(ctx, s.sessionID)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("First?", list[0].Question)
	s.Equal("Second?", list[1].Question)
	s.Equal("Third?", list[2].Question)
	for i, q := range list {
		s.Equal(i, q.Position)
		s.False(q.Answered)
	}

	count, err := s.questions.CountBySession(ctx, s.sessionID)
	s.Require().NoError(err)
	s.Equal(3, count)
}
