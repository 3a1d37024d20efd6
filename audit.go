package tokencore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// AuditEvent is one record in the token-lifecycle audit stream.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives lifecycle events from the engine's dispatcher. Emit
// must be safe for concurrent use and should return quickly; slow sinks
// cause drops (or backpressure, depending on AuditConfig.DropIfFull).
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel, for consumers that
// pull events into their own pipeline.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// NewChannelSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events describes the events operation and its observable behavior.
//
// Events does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes each event as one JSON line to the wrapped writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

const (
	auditEventMint          = "token_mint"
	auditEventValidateDeny  = "access_denied"
	auditEventRotateSuccess = "rotate_success"
	auditEventRotateInvalid = "rotate_invalid"
	auditEventRotateReplay  = "rotate_replay_detected"
	auditEventRevoke        = "token_revoke"
	auditEventRevokeAll     = "token_revoke_all"
)

// AuditErrorCode defines a public type used by tokencore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidToken AuditErrorCode = "invalid_token"
	auditErrWrongKind    AuditErrorCode = "wrong_token_kind"
	auditErrRevoked      AuditErrorCode = "revoked"
	auditErrReplay       AuditErrorCode = "refresh_reuse"
	auditErrUnavailable  AuditErrorCode = "store_unavailable"
	auditErrInternal     AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired):
		return auditErrInvalidToken
	case errors.Is(err, ErrWrongTokenKind):
		return auditErrWrongKind
	case errors.Is(err, ErrTokenRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrRefreshAlreadyUsed):
		return auditErrReplay
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
