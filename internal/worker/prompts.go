package worker

import (
	"fmt"
	"strings"

	"github.com/promptkit/promptkit/internal/llm"
	"github.com/promptkit/promptkit/pkg/models"
)

// Fallback outputs substituted when the provider fails or returns
// nothing. Availability over quality: the session always reaches a
// usable state instead of hanging on a provider outage.
const (
	FallbackQuestion = "Could you provide more details?"
)

// enhancerSystemPrompt instructs the provider for both the clarifying
// dialogue and the final enhancement.
const enhancerSystemPrompt = `You are an AI assistant helping users create clear and structured application prompts.

Your job:
1. Given the user's original idea and their answers to up to 3 clarification questions, generate a refined, enhanced prompt that fully describes the intended app or system.
2. Then, format the enhanced prompt in the output format the user requested: Markdown, JSON, or XML.
3. Do not include code — just return the enhanced prompt as a formatted specification.

Your output should ONLY be the enhanced prompt in the selected format, with no extra explanation or headers.

If the user didn't select a format, return it in Markdown by default.`

// oneShotSystemPrompt instructs the provider for the single-pass
// refinement flow, where no dialogue is possible.
const oneShotSystemPrompt = `You are an AI assistant that refines terse application ideas into clear and structured application prompts.

Your job:
1. Given only the user's original idea, infer their intent and synthesize any missing detail a complete specification would need.
2. You may NOT ask clarifying questions; resolve every ambiguity yourself with the most plausible interpretation.
3. Do not include code — just return the enhanced prompt as a formatted specification.

Your output should ONLY be the enhanced prompt, with no extra explanation or headers.`

// questionMessages builds the provider request for the next clarifying
// question. Unanswered transcript entries carry an explicit
// placeholder so the provider sees the full dialogue shape.
func questionMessages(originalPrompt string, transcript models.Transcript) []llm.Message {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Original prompt: %q\n\n", originalPrompt))
	sb.WriteString("Previous questions and answers:\n")
	for i, qa := range transcript {
		if i > 0 {
			sb.WriteString("\n")
		}
		answer := "Not answered yet"
		if qa.Answered {
			answer = qa.Answer
		}
		sb.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", qa.Question, answer))
	}
	sb.WriteString("\nAsk one clarifying question:")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: enhancerSystemPrompt},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

// enhanceMessages builds the provider request for the final enhanced
// prompt, embedding the full transcript and the selected export format.
func enhanceMessages(sess *models.Session, transcript models.Transcript) []llm.Message {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Original prompt: %q\n\n", sess.OriginalPrompt))
	sb.WriteString("Additional details:\n")
	for i, qa := range transcript {
		if i > 0 {
			sb.WriteString("\n")
		}
		answer := "Not provided"
		if qa.Answered {
			answer = qa.Answer
		}
		sb.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", qa.Question, answer))
	}
	sb.WriteString(fmt.Sprintf("\nPlease output only the enhanced prompt in %s format.", sess.SelectedFormat))

	return []llm.Message{
		{Role: llm.RoleSystem, Content: enhancerSystemPrompt},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

// oneShotMessages builds the provider request for the single-pass
// refinement: original prompt only, no transcript.
func oneShotMessages(sess *models.Session) []llm.Message {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Original prompt: %q\n\n", sess.OriginalPrompt))
	sb.WriteString(fmt.Sprintf("Please output only the enhanced prompt in %s format.", sess.SelectedFormat))

	return []llm.Message{
		{Role: llm.RoleSystem, Content: oneShotSystemPrompt},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}
