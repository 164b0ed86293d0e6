// Package codec decodes queue envelopes into Task records.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/AgentRelay/internal/domain"
	"github.com/Strob0t/AgentRelay/internal/domain/task"
)

// DefaultHardDeadline applies when the envelope omits timeouts.hard_seconds
// or carries a non-positive value.
const DefaultHardDeadline = 900 * time.Second

// Reply type tags accepted on the wire.
const (
	replyTypeIssue = "github.pr_review"
	replyTypeChat  = "slack.message"
	replyTypeNone  = "none"
)

// envelope mirrors the inbound message contract.
type envelope struct {
	CorrelationID string       `json:"correlation_id"`
	Agent         agentSpec    `json:"agent"`
	Reply         *replySpec   `json:"reply"`
	Timeouts      *timeoutSpec `json:"timeouts"`
}

type agentSpec struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type replySpec struct {
	Type    string       `json:"type"`
	Targets replyTargets `json:"targets"`
}

type replyTargets struct {
	Repo        string `json:"repo"`
	Number      int    `json:"number"`
	Token       string `json:"token"`
	CallbackURL string `json:"callback_url"`
}

type timeoutSpec struct {
	HardSeconds int `json:"hard_seconds"`
}

// deliveryWrapper is the push-transport wrapper: the envelope JSON arrives
// base64-encoded in a "data" field.
type deliveryWrapper struct {
	Data string `json:"data"`
}

// Decode turns a raw queue payload into an immutable Task.
//
// The payload is either the JSON envelope itself or a delivery wrapper
// holding it base64-encoded. A missing correlation id is generated fresh;
// a missing or non-positive hard deadline falls back to DefaultHardDeadline.
// Anything structurally unfixable by redelivery is reported as
// domain.ErrMalformed.
func Decode(raw []byte) (*task.Task, error) {
	return DecodeWithDeadline(raw, DefaultHardDeadline)
}

// DecodeWithDeadline is Decode with a caller-configured fallback deadline,
// applied when the envelope omits timeouts.hard_seconds or carries a
// non-positive value. A non-positive fallback falls back to
// DefaultHardDeadline itself.
func DecodeWithDeadline(raw []byte, fallback time.Duration) (*task.Task, error) {
	inner, err := unwrap(raw)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(inner, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}

	if strings.TrimSpace(env.Agent.Name) == "" {
		return nil, fmt.Errorf("%w: agent.name is required", domain.ErrMalformed)
	}

	reply, err := decodeReply(env.Reply)
	if err != nil {
		return nil, err
	}

	id := env.CorrelationID
	if id == "" {
		// Generated ids are never deduplicated against retries; callers
		// wanting end-to-end dedup must supply their own.
		id = uuid.NewString()
	}

	deadline := fallback
	if deadline <= 0 {
		deadline = DefaultHardDeadline
	}
	if env.Timeouts != nil && env.Timeouts.HardSeconds > 0 {
		deadline = time.Duration(env.Timeouts.HardSeconds) * time.Second
	}

	return &task.Task{
		CorrelationID: id,
		Agent:         env.Agent.Name,
		Args:          env.Agent.Args,
		Reply:         reply,
		HardDeadline:  deadline,
	}, nil
}

// Canonicalize decodes raw and returns the wire bytes to enqueue alongside
// the decoded Task. When the envelope already names a correlation id the
// unwrapped envelope passes through byte-identical; when the id was
// generated, it is embedded into the returned bytes so every later decode of
// the message yields the same id the submitter was told.
func Canonicalize(raw []byte) ([]byte, *task.Task, error) {
	t, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}

	inner, err := unwrap(raw)
	if err != nil {
		return nil, nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(inner, &fields); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}

	var suppliedID string
	if rawID, ok := fields["correlation_id"]; ok {
		_ = json.Unmarshal(rawID, &suppliedID)
	}
	if suppliedID != "" {
		return inner, t, nil
	}

	idJSON, err := json.Marshal(t.CorrelationID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode correlation id: %v", domain.ErrMalformed, err)
	}
	fields["correlation_id"] = idJSON

	canonical, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: re-encode envelope: %v", domain.ErrMalformed, err)
	}
	return canonical, t, nil
}

// unwrap extracts the envelope JSON from a delivery wrapper if present.
func unwrap(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformed)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", domain.ErrMalformed)
	}

	var wrapper deliveryWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Data == "" {
		return raw, nil
	}

	inner, err := base64.StdEncoding.DecodeString(wrapper.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: delivery wrapper data is not base64: %v", domain.ErrMalformed, err)
	}
	if !json.Valid(inner) {
		return nil, fmt.Errorf("%w: wrapped payload is not valid JSON", domain.ErrMalformed)
	}
	return inner, nil
}

func decodeReply(r *replySpec) (task.ReplyDescriptor, error) {
	if r == nil || r.Type == "" || r.Type == replyTypeNone {
		return task.ReplyDescriptor{Kind: task.ReplyNone}, nil
	}

	switch r.Type {
	case replyTypeIssue:
		if r.Targets.Repo == "" || r.Targets.Number <= 0 {
			return task.ReplyDescriptor{}, fmt.Errorf("%w: reply targets need repo and number", domain.ErrMalformed)
		}
		return task.ReplyDescriptor{
			Kind:   task.ReplyIssueComment,
			Repo:   r.Targets.Repo,
			Number: r.Targets.Number,
			Token:  r.Targets.Token,
		}, nil
	case replyTypeChat:
		if r.Targets.CallbackURL == "" {
			return task.ReplyDescriptor{}, fmt.Errorf("%w: reply targets need callback_url", domain.ErrMalformed)
		}
		return task.ReplyDescriptor{
			Kind:        task.ReplyChatMessage,
			CallbackURL: r.Targets.CallbackURL,
		}, nil
	default:
		return task.ReplyDescriptor{}, fmt.Errorf("%w: unknown reply type %q", domain.ErrMalformed, r.Type)
	}
}
