package conversation

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/chatflow/internal/domain"
)

// FinalizeUser builds the frozen turn for a user submission.
func FinalizeUser(text string, attachments []string) domain.Turn {
	return domain.Turn{
		ID:          uuid.New(),
		Role:        domain.RoleUser,
		DisplayText: text,
		Attachments: slices.Clone(attachments),
		CreatedAt:   time.Now().UTC(),
	}
}

// FinalizeAssistant builds the frozen turn for an agent response. The
// display text is the concatenated text deltas, or the agent's result when
// no delta arrived.
func FinalizeAssistant(snap Snapshot, result fmt.Stringer) domain.Turn {
	text := snap.Text
	if text == "" && result != nil {
		text = result.String()
	}
	return domain.Turn{
		ID:          uuid.New(),
		Role:        domain.RoleAssistant,
		DisplayText: text,
		Flow:        cloneAll(snap.Flow, domain.FlowItem.Clone),
		ToolCalls:   cloneAll(snap.ToolCalls, domain.ToolCall.Clone),
		ToolResults: cloneAll(snap.ToolResults, domain.ToolResult.Clone),
		CreatedAt:   time.Now().UTC(),
	}
}

// TurnView is a stored turn together with its display instructions.
type TurnView struct {
	Turn         domain.Turn   `json:"turn"`
	Instructions []Instruction `json:"instructions"`
}

// Render produces the display instructions for a stored turn. Turns with a
// flow log are replayed item by item. Turns without one fall back to their
// text, then every tool call, then every tool result.
func Render(turn domain.Turn) []Instruction {
	out := make([]Instruction, 0, len(turn.Flow)+len(turn.ToolCalls)+len(turn.ToolResults)+2)

	if len(turn.Flow) > 0 {
		for _, item := range turn.Flow {
			if in, ok := renderFlowItem(turn.Role, item); ok {
				out = append(out, in)
			}
		}
	} else {
		if turn.DisplayText != "" {
			out = append(out, textInstruction(turn.Role, turn.DisplayText))
		}
		for _, tc := range turn.ToolCalls {
			out = append(out, toolCallInstruction(tc))
		}
		for _, tr := range turn.ToolResults {
			out = append(out, toolResultInstruction(tr, false))
		}
	}

	if len(turn.Attachments) > 0 {
		out = append(out, attachmentsInstruction(turn.Attachments))
	}

	return out
}

func renderFlowItem(role domain.Role, item domain.FlowItem) (Instruction, bool) {
	switch item.Type {
	case domain.FlowItemText:
		return textInstruction(role, item.Content), true
	case domain.FlowItemToolCall:
		if item.Tool == nil {
			return Instruction{}, false
		}
		return toolCallInstruction(*item.Tool), true
	case domain.FlowItemToolResult:
		if item.Result == nil {
			return Instruction{}, false
		}
		return toolResultInstruction(*item.Result, false), true
	default:
		return Instruction{}, false
	}
}

// BuildPrompt appends the uploaded file paths to the user's text.
func BuildPrompt(text string, files []string) string {
	if len(files) == 0 {
		return text
	}
	return text + "\n\nUploaded files: " + strings.Join(files, ", ")
}

func baseNames(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = path.Base(filepath.ToSlash(f))
	}
	return names
}
