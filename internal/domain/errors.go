// Package domain provides shared domain-level sentinel errors.
//
// These sentinels form the failure taxonomy for a task pass. Callers wrap
// them with context via fmt.Errorf and classify at the boundaries with
// errors.Is.
package domain

import "errors"

// ErrMalformed indicates the queue message could not be decoded into a Task.
// Redelivery cannot fix a structurally broken message.
var ErrMalformed = errors.New("malformed task envelope")

// ErrUnsafeIdentifier indicates a correlation id that is not safe to use as
// a filesystem path segment. The id is attacker-influenced input.
var ErrUnsafeIdentifier = errors.New("unsafe correlation identifier")

// ErrSpawnFailed indicates the agent binary could not be started.
// Transient: a binary missing on this instance may exist on another.
var ErrSpawnFailed = errors.New("agent spawn failed")

// ErrDeadlineExceeded indicates the agent process hit its hard deadline and
// was forcibly terminated.
var ErrDeadlineExceeded = errors.New("hard deadline exceeded")

// ErrAgentFailed indicates the agent process exited non-zero.
var ErrAgentFailed = errors.New("agent exited non-zero")

// ErrDispatchFailed indicates result delivery to a sink failed after the
// agent itself completed successfully.
var ErrDispatchFailed = errors.New("result dispatch failed")
