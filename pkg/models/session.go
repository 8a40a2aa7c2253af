// Package models contains domain models for promptkit.
package models

// MaxQuestions is the number of clarifying questions an interactive
// session asks before enhancement. It bounds the valid question
// positions (0..MaxQuestions-1) and is the threshold at which
// SubmitAnswer flips the session into enhancing.
const MaxQuestions = 3

// SessionStatus represents the lifecycle state of a session.
// Transitions are monotonic: questioning -> enhancing -> complete.
type SessionStatus string

const (
	StatusQuestioning SessionStatus = "questioning"
	StatusEnhancing   SessionStatus = "enhancing"
	StatusComplete    SessionStatus = "complete"
)

// Valid reports whether the status is a known lifecycle state.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusQuestioning, StatusEnhancing, StatusComplete:
		return true
	}
	return false
}

// SessionType distinguishes the clarifying dialogue flow from the
// single-pass automatic refinement flow.
type SessionType string

const (
	TypeInteractive SessionType = "interactive"
	TypeOneShot     SessionType = "oneshot"
)

// Valid reports whether the type is a known session variant.
func (t SessionType) Valid() bool {
	return t == TypeInteractive || t == TypeOneShot
}

// ExportFormat identifies one of the supported export serializations.
type ExportFormat string

const (
	FormatMarkdown ExportFormat = "markdown"
	FormatJSON     ExportFormat = "json"
	FormatXML      ExportFormat = "xml"
)

// Valid reports whether the format is a known export format.
func (f ExportFormat) Valid() bool {
	switch f {
	case FormatMarkdown, FormatJSON, FormatXML:
		return true
	}
	return false
}

// Session represents one end-to-end prompt-enhancement dialogue.
type Session struct {
	ID             string        `json:"id"`
	OriginalPrompt string        `json:"original_prompt"`
	SessionType    SessionType   `json:"session_type"`
	Status         SessionStatus `json:"status"`
	CurrentStep    int           `json:"current_step"`
	SelectedFormat ExportFormat  `json:"selected_format"`
	EnhancedPrompt string        `json:"enhanced_prompt,omitempty"`
	CreatedAt      string        `json:"created_at"`
	CreatedAtEpoch int64         `json:"created_at_epoch"`
}

// Enhanced reports whether generation has finished for this session.
// Absence of the enhanced prompt means generation is still pending.
func (s *Session) Enhanced() bool {
	return s.EnhancedPrompt != ""
}

// CompletedSession is the dashboard projection of a finished session:
// the session itself plus its question count and token accounting.
type CompletedSession struct {
	Session
	QuestionCount  int `json:"question_count"`
	OriginalTokens int `json:"original_tokens"`
	EnhancedTokens int `json:"enhanced_tokens"`
}
