package logging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Login flow events
	LoginSuccess AuditEventType = "LOGIN_SUCCESS"
	LoginFailure AuditEventType = "LOGIN_FAILURE"

	// Linked account events
	AccountLink   AuditEventType = "ACCOUNT_LINK"
	AccountUnlink AuditEventType = "ACCOUNT_UNLINK"
	AccountSwitch AuditEventType = "ACCOUNT_SWITCH"

	// Session events
	SessionRefresh AuditEventType = "SESSION_REFRESH"

	// Purchase events
	PurchaseSettle AuditEventType = "PURCHASE_SETTLE"

	// Admin actions
	AdminAction AuditEventType = "ADMIN_ACTION"
)

// AuditSeverity represents the severity level of an audit event
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailure AuditStatus = "failure"
)

// AuditEvent represents a security/operational audit event
type AuditEvent struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    AuditEventType         `json:"event_type"`
	Severity     AuditSeverity          `json:"severity"`
	ChatUserID   int64                  `json:"chat_user_id,omitempty"`
	Action       string                 `json:"action"`
	Resource     string                 `json:"resource"`
	Status       AuditStatus            `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewAuditEvent creates a new audit event with a generated ID and timestamp
func NewAuditEvent(eventType AuditEventType, action string, status AuditStatus) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Action:    action,
		Status:    status,
		Severity:  SeverityInfo,
	}
}

// WithChatUserID sets the chat user for the audit event
func (e *AuditEvent) WithChatUserID(id int64) *AuditEvent {
	e.ChatUserID = id
	return e
}

// WithResource sets the resource (phone number, offer code, ...) acted on
func (e *AuditEvent) WithResource(resource string) *AuditEvent {
	e.Resource = resource
	return e
}

// WithSeverity sets the severity for the audit event
func (e *AuditEvent) WithSeverity(sev AuditSeverity) *AuditEvent {
	e.Severity = sev
	return e
}

// WithDetail attaches an arbitrary detail field
func (e *AuditEvent) WithDetail(key string, value interface{}) *AuditEvent {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithError records an error message and flips status to failure
func (e *AuditEvent) WithError(err error) *AuditEvent {
	if err != nil {
		e.ErrorMessage = err.Error()
		e.Status = StatusFailure
	}
	return e
}

// Emit writes the audit event through the logger as a structured entry
func (e *AuditEvent) Emit(l *Logger) {
	data, err := json.Marshal(e)
	if err != nil {
		l.Error("failed to marshal audit event", "event_type", string(e.EventType))
		return
	}
	l.Info(fmt.Sprintf("audit: %s", e.Action),
		"audit", string(data),
		"event_type", string(e.EventType),
		"status", string(e.Status),
	)
}
