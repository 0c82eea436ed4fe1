package signing

import (
	"contraflow/event"

	"github.com/fundwit/go-commons/types"
)

const (
	OrderSequential = "sequential"
	OrderParallel   = "parallel"

	SessionStatusDraft     = "draft"
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
	SessionStatusExpired   = "expired"

	SignerStatusPending  = "pending"
	SignerStatusSent     = "sent"
	SignerStatusViewed   = "viewed"
	SignerStatusSigned   = "signed"
	SignerStatusDeclined = "declined"

	SignerTypeInternal = "internal"
	SignerTypeExternal = "external"
)

// Audit events of a signing session.
const (
	AuditCreated      = "created"
	AuditSent         = "sent"
	AuditViewed       = "viewed"
	AuditFieldFilled  = "field_filled"
	AuditSigned       = "signed"
	AuditDeclined     = "declined"
	AuditCancelled    = "cancelled"
	AuditExpired      = "expired"
	AuditCompleted    = "completed"
	AuditReminderSent = "reminder_sent"
)

// SigningSession is the multi-party e-signature transaction for one contract
// document.
type SigningSession struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	ContractID  types.ID `json:"contractId" gorm:"index:idx_session_contract"`
	InitiatedBy types.ID `json:"initiatedBy"`

	SigningOrder string `json:"signingOrder"`
	Status       string `json:"status"`

	// DocumentHash fingerprints the source document at session creation;
	// FinalDocumentHash seals the rendered output.
	DocumentHash      string `json:"documentHash"`
	FinalDocumentHash string `json:"finalDocumentHash"`
	FinalStoragePath  string `json:"finalStoragePath"`

	ExpiresAt   types.Timestamp `json:"expiresAt" sql:"type:DATETIME(3)"`
	CompletedAt types.Timestamp `json:"completedAt" sql:"type:DATETIME(3)"`
	CreateTime  types.Timestamp `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

func (s *SigningSession) TableName() string {
	return "signing_sessions"
}

type SigningSessionSigner struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	SessionID types.ID `json:"sessionId" gorm:"index:idx_signer_session"`

	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`

	SigningOrder int `json:"signingOrder"`

	// Token holds only the sha256 digest of the bearer token; the raw value
	// is returned once at send time and never stored.
	Token          string          `json:"-" gorm:"index:idx_signer_token"`
	TokenExpiresAt types.Timestamp `json:"tokenExpiresAt" sql:"type:DATETIME(3)"`

	Status string `json:"status"`

	SignatureImagePath string `json:"signatureImagePath"`
	SignatureMethod    string `json:"signatureMethod"`

	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`

	SentAt   types.Timestamp `json:"sentAt" sql:"type:DATETIME(3)"`
	ViewedAt types.Timestamp `json:"viewedAt" sql:"type:DATETIME(3)"`
	SignedAt types.Timestamp `json:"signedAt" sql:"type:DATETIME(3)"`
}

func (s *SigningSessionSigner) TableName() string {
	return "signing_session_signers"
}

type SigningField struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	SessionID types.ID `json:"sessionId" gorm:"index:idx_field_session"`
	SignerID  types.ID `json:"signerId"`

	FieldType  string `json:"fieldType"` // signature, initials, text, date, checkbox, dropdown
	PageNumber int    `json:"pageNumber"`

	XPosition float64 `json:"xPosition"`
	YPosition float64 `json:"yPosition"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`

	IsRequired bool   `json:"isRequired"`
	Value      string `json:"value"`

	FilledAt types.Timestamp `json:"filledAt" sql:"type:DATETIME(3)"`
}

func (f *SigningField) TableName() string {
	return "signing_fields"
}

// SigningAuditLog rows are append-only.
type SigningAuditLog struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	SessionID types.ID `json:"sessionId" gorm:"index:idx_audit_session"`
	SignerID  types.ID `json:"signerId"` // zero for session level events

	Event   string        `json:"event"`
	Details event.Details `json:"details" sql:"type:TEXT"`

	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (l *SigningAuditLog) TableName() string {
	return "signing_audit_logs"
}

type SessionDetail struct {
	SigningSession

	Signers []SigningSessionSigner `json:"signers"`
	Fields  []SigningField         `json:"fields"`
}
