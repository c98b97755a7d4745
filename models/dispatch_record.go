package models

import (
	"time"

	"github.com/google/uuid"
)

// DispatchStatus is the settled state of one provider slot
type DispatchStatus string

const (
	DispatchStatusSuccess DispatchStatus = "success"
	DispatchStatusFailed  DispatchStatus = "failed"
	DispatchStatusSkipped DispatchStatus = "skipped" // never attempted, e.g. unconfigured
)

// DispatchRecord is the audit trail entry for one provider slot of a dispatch
type DispatchRecord struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	MessageID  uuid.UUID      `json:"message_id" db:"message_id"`
	UserID     string         `json:"user_id" db:"user_id"`
	Provider   ProviderID     `json:"provider" db:"provider"`
	Model      string         `json:"model" db:"model"`
	Status     DispatchStatus `json:"status" db:"status"`
	ErrorKind  *string        `json:"error_kind,omitempty" db:"error_kind"`
	Detail     *string        `json:"detail,omitempty" db:"detail"`
	TokensUsed int            `json:"tokens_used" db:"tokens_used"`
	Cost       float64        `json:"cost" db:"cost"`
	LatencyMs  int            `json:"latency_ms" db:"latency_ms"`
	RequestID  string         `json:"request_id,omitempty" db:"request_id"`
	Timestamp  time.Time      `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the DispatchRecord model
func (DispatchRecord) TableName() string {
	return "dispatch_records"
}

// NewDispatchRecord creates a record for one provider slot
func NewDispatchRecord(messageID uuid.UUID, userID string, provider ProviderID, model string) *DispatchRecord {
	return &DispatchRecord{
		ID:        uuid.New(),
		MessageID: messageID,
		UserID:    userID,
		Provider:  provider,
		Model:     model,
		Status:    DispatchStatusSuccess,
		Timestamp: time.Now().UTC(),
	}
}

// WithUsage sets token and cost metrics
func (r *DispatchRecord) WithUsage(tokensUsed int, cost float64, latency time.Duration) *DispatchRecord {
	r.TokensUsed = tokensUsed
	r.Cost = cost
	r.LatencyMs = int(latency.Milliseconds())
	return r
}

// WithFailure marks the record failed (or skipped) with a normalized error kind
func (r *DispatchRecord) WithFailure(status DispatchStatus, errorKind, detail string) *DispatchRecord {
	r.Status = status
	r.ErrorKind = &errorKind
	r.Detail = &detail
	return r
}

// WithRequestID sets the originating HTTP request id
func (r *DispatchRecord) WithRequestID(requestID string) *DispatchRecord {
	r.RequestID = requestID
	return r
}
