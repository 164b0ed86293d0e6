// Package task defines the Task domain entity and its execution result.
package task

import (
	"encoding/json"
	"time"
)

// ReplyKind selects which sink receives the task's output.
type ReplyKind string

const (
	// ReplyNone performs no delivery.
	ReplyNone ReplyKind = "none"
	// ReplyIssueComment posts the output as an issue/PR comment.
	ReplyIssueComment ReplyKind = "issue_comment"
	// ReplyChatMessage posts the output to a chat callback URL.
	ReplyChatMessage ReplyKind = "chat_message"
)

// ReplyDescriptor is the tagged variant describing the output sink.
// Only the fields for the active Kind are populated.
type ReplyDescriptor struct {
	Kind ReplyKind `json:"kind"`

	// issue_comment fields.
	Repo   string `json:"repo,omitempty"`   // "owner/name"
	Number int    `json:"number,omitempty"` // issue or PR number
	Token  string `json:"-"`                // bearer credential, never serialized

	// chat_message fields.
	CallbackURL string `json:"callback_url,omitempty"`
}

// Task is one decoded unit of work derived from a queue message.
// A Task is immutable after decoding: created by the codec from exactly one
// message, consumed by exactly one worker pass, never persisted.
type Task struct {
	// CorrelationID threads the task through sandbox naming, logging and
	// tracing. Always non-empty after decode; untrusted for path use until
	// the sandbox provisioner validates it.
	CorrelationID string `json:"correlation_id"`

	// Agent names the reasoning behavior to invoke; opaque to the core.
	Agent string `json:"agent"`

	// Args is the structured input for the agent, passed through verbatim.
	// Kept as a raw blob: the core never interprets its contents.
	Args json.RawMessage `json:"args,omitempty"`

	// Reply describes the sink for the task's output.
	Reply ReplyDescriptor `json:"reply"`

	// HardDeadline is the wall-clock bound on agent execution.
	HardDeadline time.Duration `json:"-"`
}

// ExecutionResult holds the captured outcome of one agent invocation.
// Produced once per runner call, consumed once by dispatch or by the
// worker's error classification.
type ExecutionResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   []byte `json:"stdout"`
	Stderr   []byte `json:"stderr"`
	TimedOut bool   `json:"timed_out"`
}
