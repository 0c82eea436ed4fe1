package servehttp

import (
	"net/http"

	"contraflow/bizerror"
	"contraflow/domain/signing"
	"contraflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

func RegisterSigningSessionHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/signing-sessions", middleWares...)

	handler := &signingHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateSession)
	g.GET(":id", handler.handleDetailSession)
	g.POST(":id/advancing", handler.handleAdvanceSession)
	g.POST(":id/cancelling", handler.handleCancelSession)

	s := r.Group("/v1/signing-signers", middleWares...)
	s.POST(":id/sending", handler.handleSendToSigner)
	s.POST(":id/reminding", handler.handleSendReminder)
}

// RegisterPublicSigningHandler exposes the unauthenticated signer surface,
// keyed only by the raw bearer token.
func RegisterPublicSigningHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/sign", middleWares...)

	handler := &signingHandler{
		validator: validator.New(),
	}

	g.GET(":token", handler.handleValidateToken)
	g.POST(":token", handler.handleCaptureSignature)
	g.POST(":token/declining", handler.handleDecline)
}

type signingHandler struct {
	validator *validator.Validate
}

type declineRequest struct {
	Reason string `json:"reason"`
}

type sendResult struct {
	Token string `json:"token"`
}

func requestMeta(c *gin.Context) signing.RequestMeta {
	return signing.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *signingHandler) handleCreateSession(c *gin.Context) {
	creation := signing.SessionCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := signing.CreateSessionFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *signingHandler) handleDetailSession(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	detail, err := signing.DetailSessionFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *signingHandler) handleSendToSigner(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	rawToken, err := signing.SendToSignerFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, &sendResult{Token: rawToken})
}

func (h *signingHandler) handleSendReminder(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	rawToken, err := signing.SendReminderFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, &sendResult{Token: rawToken})
}

func (h *signingHandler) handleAdvanceSession(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	sec := session.ExtractSessionFromGinContext(c)
	if err := signing.AdvanceSessionFunc(id, sec); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	detail, err := signing.DetailSessionFunc(id, sec)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *signingHandler) handleCancelSession(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	if err := signing.CancelSessionFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *signingHandler) handleValidateToken(c *gin.Context) {
	signer, err := signing.ValidateTokenFunc(c.Request.Context(), c.Param("token"), requestMeta(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, signer)
}

func (h *signingHandler) handleCaptureSignature(c *gin.Context) {
	capture := signing.SignatureCapture{}
	err := c.ShouldBindBodyWith(&capture, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(capture); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	signer, err := signing.CaptureSignatureFunc(c.Request.Context(), c.Param("token"), &capture, requestMeta(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	// drive the session forward for the signer: a sequential session sends
	// to the next signer, the last signature completes it. Best-effort, the
	// capture itself is already committed.
	if err := signing.AdvanceSessionCtxFunc(c.Request.Context(), signer.SessionID); err != nil {
		logrus.Warnf("failed to advance signing session %s after capture: %v", signer.SessionID, err)
	}
	c.JSON(http.StatusOK, signer)
}

func (h *signingHandler) handleDecline(c *gin.Context) {
	request := declineRequest{}
	// the body is optional for a decline
	_ = c.ShouldBindBodyWith(&request, binding.JSON)

	err := signing.DeclineFunc(c.Request.Context(), c.Param("token"), request.Reason, requestMeta(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}
