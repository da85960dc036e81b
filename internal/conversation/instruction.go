package conversation

import (
	"encoding/json"
	"slices"

	"github.com/gosuda/chatflow/internal/domain"
)

// InstructionKind selects how the page paints an Instruction.
type InstructionKind string

const (
	KindText        InstructionKind = "text"
	KindToolCall    InstructionKind = "tool_call"
	KindToolResult  InstructionKind = "tool_result"
	KindAttachments InstructionKind = "attachments"
	KindNotice      InstructionKind = "notice"
	KindError       InstructionKind = "error"
)

// Badge is the colour class of a tool or status banner.
type Badge string

const (
	BadgeInfo    Badge = "info"
	BadgeSuccess Badge = "success"
	BadgeError   Badge = "error"
)

// Instruction is one display step. Kind decides which fields are populated:
//
//	text         Text (markdown), HTML once formatted
//	tool_call    ToolName, ToolUseID, Input; collapsible, collapsed
//	tool_result  Status, Label, Badge, Parts; collapsible
//	attachments  Files
//	notice       Text, Badge
//	error        Text, Badge
type Instruction struct {
	Kind      InstructionKind     `json:"kind"`
	Role      domain.Role         `json:"role,omitempty"`
	Text      string              `json:"text,omitempty"`
	HTML      string              `json:"html,omitempty"`
	ToolName  string              `json:"tool_name,omitempty"`
	ToolUseID string              `json:"tool_use_id,omitempty"`
	Input     json.RawMessage     `json:"input,omitempty"`
	Status    domain.ToolStatus   `json:"status,omitempty"`
	Label     string              `json:"label,omitempty"`
	Badge     Badge               `json:"badge,omitempty"`
	Title     string              `json:"title,omitempty"`
	Parts     []domain.ResultPart `json:"parts,omitempty"`
	Expanded  bool                `json:"expanded"`
	Files     []string            `json:"files,omitempty"`
}

func textInstruction(role domain.Role, text string) Instruction {
	return Instruction{Kind: KindText, Role: role, Text: text}
}

func toolCallInstruction(tc domain.ToolCall) Instruction {
	return Instruction{
		Kind:      KindToolCall,
		Role:      domain.RoleAssistant,
		ToolName:  tc.Name,
		ToolUseID: tc.InvocationID,
		Input:     slices.Clone(tc.Input),
		Label:     "Tool Call: " + tc.Name,
		Badge:     BadgeInfo,
		Title:     "Tool Input",
	}
}

// toolResultInstruction renders a result. Live results are expanded and
// failures get an error-details panel; in history they stay collapsed.
func toolResultInstruction(tr domain.ToolResult, live bool) Instruction {
	in := Instruction{
		Kind:      KindToolResult,
		Role:      domain.RoleAssistant,
		ToolUseID: tr.InvocationID,
		Status:    tr.Status,
		Label:     "Tool Result: " + tr.Status.Label(),
		Badge:     BadgeError,
		Title:     "Tool Result",
		Parts:     tr.Clone().Content,
		Expanded:  live,
	}
	if tr.Status.Kind() == domain.StatusKindSuccess {
		in.Badge = BadgeSuccess
	} else if live {
		in.Title = "Error Details"
	}
	return in
}

func attachmentsInstruction(files []string) Instruction {
	return Instruction{
		Kind:  KindAttachments,
		Role:  domain.RoleUser,
		Label: "Files",
		Files: slices.Clone(files),
	}
}

// NoticeInstruction is an informational banner, such as an upload confirmation.
func NoticeInstruction(text string) Instruction {
	return Instruction{Kind: KindNotice, Text: text, Badge: BadgeSuccess}
}

// ErrorInstruction reports an agent failure to the page.
func ErrorInstruction(err error) Instruction {
	return Instruction{
		Kind:  KindError,
		Role:  domain.RoleAssistant,
		Text:  err.Error(),
		Badge: BadgeError,
	}
}
