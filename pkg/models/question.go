package models

// Question represents one turn of the clarifying dialogue.
// Position is 0-based and unique per session; a question with an
// empty answer at position == session.CurrentStep is the current
// open question.
type Question struct {
	ID             int64  `json:"id"`
	SessionID      string `json:"session_id"`
	Position       int    `json:"order"`
	Question       string `json:"question"`
	Answer         string `json:"answer,omitempty"`
	Answered       bool   `json:"answered"`
	CreatedAt      string `json:"created_at"`
	CreatedAtEpoch int64  `json:"created_at_epoch"`
}

// QA is one transcript entry: a question paired with its answer,
// if one has been given yet.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Answered bool   `json:"answered"`
}

// Transcript is the ordered question/answer history of a session,
// passed to the generation workers as context.
type Transcript []QA
