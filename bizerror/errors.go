package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrTemplateNotPublished  = errors.New("workflow template is not published")
	ErrTemplatePublished     = errors.New("workflow template is already published")
	ErrTemplateIsReferenced  = errors.New("workflow template is referenced")
	ErrWorkflowAlreadyActive = errors.New("active workflow already exists for this contract")
	ErrStaleStage            = errors.New("action does not target the current stage")
	ErrWorkflowTerminal      = errors.New("workflow instance is in a terminal state")
	ErrKycIncomplete         = errors.New("kyc pack incomplete")
	ErrNoSigningAuthority    = errors.New("no signing authority")
	ErrUnknownStage          = errors.New("unknown stage")
	ErrSourceDocumentMissing = errors.New("contract has no source document")

	ErrInvalidToken     = errors.New("invalid signing token")
	ErrTokenExpired     = errors.New("signing link has expired")
	ErrSessionInactive  = errors.New("signing session is no longer active")
	ErrAlreadySigned    = errors.New("document already signed by this signer")
	ErrAlreadyDeclined  = errors.New("signer has declined to sign this document")
	ErrInvalidSignature = errors.New("signature must be a valid PNG or JPEG image")
	ErrDocumentTampered = errors.New("source document changed since session creation")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}
