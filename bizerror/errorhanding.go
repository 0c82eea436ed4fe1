package bizerror

import (
	"contraflow/misc"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

var statusMappings = []struct {
	Err    error
	Status int
	Code   string
}{
	{ErrUnauthenticated, http.StatusUnauthorized, "common.unauthenticated"},
	{ErrForbidden, http.StatusForbidden, "security.forbidden"},

	{ErrTemplateNotPublished, http.StatusConflict, "template.not_published"},
	{ErrTemplatePublished, http.StatusConflict, "template.already_published"},
	{ErrTemplateIsReferenced, http.StatusConflict, "template.referenced"},
	{ErrWorkflowAlreadyActive, http.StatusConflict, "workflow.already_active"},
	{ErrStaleStage, http.StatusConflict, "workflow.stale_stage"},
	{ErrWorkflowTerminal, http.StatusConflict, "workflow.terminal"},
	{ErrKycIncomplete, http.StatusConflict, "workflow.kyc_incomplete"},
	{ErrNoSigningAuthority, http.StatusConflict, "workflow.no_signing_authority"},
	{ErrUnknownStage, http.StatusBadRequest, "workflow.unknown_stage"},
	{ErrSourceDocumentMissing, http.StatusConflict, "signing.source_document_missing"},

	{ErrInvalidToken, http.StatusUnauthorized, "signing.invalid_token"},
	{ErrTokenExpired, http.StatusUnauthorized, "signing.token_expired"},
	{ErrSessionInactive, http.StatusConflict, "signing.session_inactive"},
	{ErrAlreadySigned, http.StatusConflict, "signing.already_signed"},
	{ErrAlreadyDeclined, http.StatusConflict, "signing.already_declined"},
	{ErrInvalidSignature, http.StatusBadRequest, "signing.invalid_signature"},
	{ErrDocumentTampered, http.StatusConflict, "signing.document_tampered"},
}

func HandleError(c *gin.Context, err error) {
	logrus.Error(err)

	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	if bizErr, ok := genericErr.(BizError); ok {
		respond := bizErr.Respond()
		c.JSON(respond.Status, &misc.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	// bad request: io.EOF (no body)
	if errors.Is(genericErr, io.EOF) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		c.Abort()
		return
	}
	// bad request: json syntax error
	if syntaxErr, ok := genericErr.(*json.SyntaxError); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		c.Abort()
		return
	}
	// validation failed
	if validationErr, ok := genericErr.(validator.ValidationErrors); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		c.Abort()
		return
	}

	for _, mapping := range statusMappings {
		if errors.Is(genericErr, mapping.Err) {
			c.JSON(mapping.Status, &misc.ErrorBody{Code: mapping.Code, Message: mapping.Err.Error()})
			c.Abort()
			return
		}
	}

	if errors.Is(genericErr, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, &misc.ErrorBody{Code: "common.record_not_found", Message: "record not found"})
		c.Abort()
		return
	}

	c.JSON(http.StatusInternalServerError, &misc.ErrorBody{Code: "common.internal_server_error", Message: err.Error()})
	c.Abort()
}
