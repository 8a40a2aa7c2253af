// Package export projects a completed session into one of the
// supported serialization formats. Projection is pure: the same
// session and questions always produce byte-identical output.
package export

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/promptkit/promptkit/pkg/models"
)

// ErrNotReady is returned when export is requested before the
// enhanced prompt has been generated.
var ErrNotReady = errors.New("enhanced prompt not ready")

// jsonQuestion is the JSON export shape for one dialogue turn.
type jsonQuestion struct {
	Question string  `json:"question"`
	Answer   *string `json:"answer"`
	Order    int     `json:"order"`
}

// jsonExport is the JSON export document.
type jsonExport struct {
	OriginalPrompt string         `json:"original_prompt"`
	EnhancedPrompt string         `json:"enhanced_prompt"`
	Questions      []jsonQuestion `json:"questions"`
}

// Project serializes a session and its questions into the requested
// format. Fails with ErrNotReady when the enhanced prompt is absent.
func Project(sess *models.Session, questions []*models.Question, format models.ExportFormat) (string, error) {
	if sess == nil || !sess.Enhanced() {
		return "", ErrNotReady
	}

	switch format {
	case models.FormatMarkdown:
		return projectMarkdown(sess, questions), nil
	case models.FormatJSON:
		return projectJSON(sess, questions)
	case models.FormatXML:
		return projectXML(sess, questions), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

func projectMarkdown(sess *models.Session, questions []*models.Question) string {
	blocks := make([]string, 0, len(questions))
	for _, q := range questions {
		answer := "*Not answered*"
		if q.Answered {
			answer = q.Answer
		}
		blocks = append(blocks, fmt.Sprintf("### Q%d: %s\n\n%s", q.Position+1, q.Question, answer))
	}

	// The document ends on the last answer, with no trailing newline.
	return fmt.Sprintf("# Enhanced Prompt\n\n%s\n\n## Original Prompt\n\n%s\n\n## Clarifying Questions\n\n%s",
		sess.EnhancedPrompt, sess.OriginalPrompt, strings.Join(blocks, "\n\n"))
}

func projectJSON(sess *models.Session, questions []*models.Question) (string, error) {
	doc := jsonExport{
		OriginalPrompt: sess.OriginalPrompt,
		EnhancedPrompt: sess.EnhancedPrompt,
		Questions:      make([]jsonQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		jq := jsonQuestion{Question: q.Question, Order: q.Position}
		if q.Answered {
			answer := q.Answer
			jq.Answer = &answer
		}
		doc.Questions = append(doc.Questions, jq)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	return string(data), nil
}

func projectXML(sess *models.Session, questions []*models.Question) string {
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	sb.WriteString("<prompt_enhancement>\n")
	sb.WriteString(fmt.Sprintf("  <original_prompt>%s</original_prompt>\n", cdata(sess.OriginalPrompt)))
	sb.WriteString(fmt.Sprintf("  <enhanced_prompt>%s</enhanced_prompt>\n", cdata(sess.EnhancedPrompt)))
	sb.WriteString("  <questions>\n")
	for _, q := range questions {
		sb.WriteString(fmt.Sprintf("    <question order=\"%d\">\n", q.Position+1))
		sb.WriteString(fmt.Sprintf("      <text>%s</text>\n", cdata(q.Question)))
		sb.WriteString(fmt.Sprintf("      <answer>%s</answer>\n", cdata(q.Answer)))
		sb.WriteString("    </question>\n")
	}
	sb.WriteString("  </questions>\n")
	sb.WriteString("</prompt_enhancement>")
	return sb.String()
}

// cdata wraps text in a CDATA section, splitting any embedded CDATA
// terminator so the output stays well-formed.
func cdata(text string) string {
	escaped := strings.ReplaceAll(text, "]]>", "]]]]><![CDATA[>")
	return "<![CDATA[" + escaped + "]]>"
}
