package servehttp

import (
	"net/http"

	"contraflow/bizerror"
	"contraflow/domain/workflow"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type WorkflowStart struct {
	ContractID types.ID `json:"contractId" validate:"required"`
	TemplateID types.ID `json:"templateId" validate:"required"`
}

func RegisterWorkflowHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-instances", middleWares...)

	handler := &workflowHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleStartWorkflow)
	g.GET("", handler.handleActiveInstance)
	g.POST(":id/actions", handler.handleRecordAction)
	g.GET(":id/actions", handler.handleHistory)
	g.POST(":id/cancelling", handler.handleCancelWorkflow)
}

type workflowHandler struct {
	validator *validator.Validate
}

func (h *workflowHandler) handleStartWorkflow(c *gin.Context) {
	start := WorkflowStart{}
	err := c.ShouldBindBodyWith(&start, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(start); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := workflow.StartWorkflowFunc(start.ContractID, start.TemplateID,
		session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, instance)
}

func (h *workflowHandler) handleActiveInstance(c *gin.Context) {
	contractID, err := types.ParseID(c.Query("contractId"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := workflow.ActiveInstanceFunc(contractID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, instance)
}

func (h *workflowHandler) handleRecordAction(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	recording := workflow.ActionRecording{}
	err := c.ShouldBindBodyWith(&recording, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(recording); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	action, err := workflow.RecordActionFunc(id, &recording, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, action)
}

func (h *workflowHandler) handleHistory(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	actions, err := workflow.HistoryFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, actions)
}

func (h *workflowHandler) handleCancelWorkflow(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	if err := workflow.CancelWorkflowFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}
