// Package view turns instruction text into HTML for the page.
package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/gosuda/chatflow/internal/conversation"
)

// Markdown renders agent and user text with GitHub-flavoured markdown. Raw
// HTML in the source is escaped, never passed through.
type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// HTML renders src. Text that is a bare JSON object or array is shown as a
// fenced json code block.
func (m *Markdown) HTML(src string) (string, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return "", nil
	}
	if looksLikeJSON(trimmed) {
		src = "```json\n" + trimmed + "\n```"
	}

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("view.Markdown.HTML: %w", err)
	}
	return buf.String(), nil
}

// Format fills in HTML for text, notice and error instructions. On failure
// the instruction is returned unchanged and the page falls back to Text.
func (m *Markdown) Format(in conversation.Instruction) conversation.Instruction {
	switch in.Kind {
	case conversation.KindText, conversation.KindNotice, conversation.KindError:
	default:
		return in
	}

	out, err := m.HTML(in.Text)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(in.Kind)).Msg("markdown render failed")
		return in
	}
	in.HTML = out
	return in
}

// FormatAll formats a list of instructions in place and returns it.
func (m *Markdown) FormatAll(ins []conversation.Instruction) []conversation.Instruction {
	for i := range ins {
		ins[i] = m.Format(ins[i])
	}
	return ins
}

// FormatViews formats every instruction of every turn.
func (m *Markdown) FormatViews(views []conversation.TurnView) []conversation.TurnView {
	for i := range views {
		views[i].Instructions = m.FormatAll(views[i].Instructions)
	}
	return views
}

func looksLikeJSON(s string) bool {
	if !(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) &&
		!(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) {
		return false
	}
	return json.Valid([]byte(s))
}
