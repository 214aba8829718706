// Package hooks implements the host-agent event handlers: capture on
// tool use, context injection at session start, handoff generation
// before compaction, and session summaries at the end. Every handler
// reads one JSON event from stdin and exits 0 no matter what happens;
// a hook that fails must degrade, never block the host.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Wire names of the host hook events, as they appear in settings.json.
const (
	EventPreToolUse   = "PreToolUse"
	EventPostToolUse  = "PostToolUse"
	EventSessionStart = "SessionStart"
	EventPreCompact   = "PreCompact"
	EventSessionEnd   = "SessionEnd"
)

// ToolInput carries the tool parameters the kit consumes. The host
// sends more; unknown fields are ignored.
type ToolInput struct {
	FilePath     string `json:"file_path,omitempty"`
	Path         string `json:"path,omitempty"`
	SubagentType string `json:"subagent_type,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
}

// Event is one hook invocation's payload from the host runtime.
// ToolResult stays raw because the host sends a string for some tools
// and an object for others.
type Event struct {
	SessionID  string          `json:"session_id"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  *ToolInput      `json:"tool_input,omitempty"`
	ToolResult json.RawMessage `json:"tool_result,omitempty"`
}

// ParseEvent decodes a hook event from r.
func ParseEvent(r io.Reader) (*Event, error) {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("hooks: decode event: %w", err)
	}
	return &ev, nil
}

// Path returns the file path the tool operated on, preferring the
// dedicated field over the generic one.
func (e *Event) Path() string {
	if e.ToolInput == nil {
		return ""
	}
	if e.ToolInput.FilePath != "" {
		return e.ToolInput.FilePath
	}
	return e.ToolInput.Path
}

// ResultText flattens the tool result to text: unwrapped when the host
// sent a JSON string, raw JSON otherwise.
func (e *Event) ResultText() string {
	if len(e.ToolResult) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.ToolResult, &s); err == nil {
		return s
	}
	return string(e.ToolResult)
}

type sessionStartOutput struct {
	HookSpecificOutput hookSpecificOutput `json:"hookSpecificOutput"`
}

type hookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

// WriteSessionStartOutput emits the session-start JSON wrapper around
// the assembled context. Empty context writes nothing at all, which
// the host treats as "nothing to inject".
func WriteSessionStartOutput(w io.Writer, context string) error {
	context = strings.TrimSpace(context)
	if context == "" {
		return nil
	}
	out := sessionStartOutput{hookSpecificOutput{
		HookEventName:     EventSessionStart,
		AdditionalContext: context,
	}}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
