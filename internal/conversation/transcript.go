package conversation

import "github.com/gosuda/chatflow/internal/domain"

// Transcript is the ordered, append-only list of turns for one session.
// Callers synchronize access.
type Transcript struct {
	turns []domain.Turn
}

// Append stores a copy of turn.
func (t *Transcript) Append(turn domain.Turn) {
	t.turns = append(t.turns, turn.Clone())
}

// Turns returns copies of every stored turn in order.
func (t *Transcript) Turns() []domain.Turn {
	out := make([]domain.Turn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.Clone()
	}
	return out
}

func (t *Transcript) Len() int { return len(t.turns) }

// Clear drops every turn.
func (t *Transcript) Clear() { t.turns = nil }

// Stats summarizes a transcript.
type Stats struct {
	UserMessages      int `json:"user_messages"`
	AssistantMessages int `json:"assistant_messages"`
	ToolCalls         int `json:"tool_calls"`
}

func (t *Transcript) Stats() Stats {
	var s Stats
	for _, turn := range t.turns {
		switch turn.Role {
		case domain.RoleUser:
			s.UserMessages++
		case domain.RoleAssistant:
			s.AssistantMessages++
		}
		s.ToolCalls += len(turn.ToolCalls)
	}
	return s
}
