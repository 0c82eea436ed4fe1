package servehttp

import (
	"net/http"

	"contraflow/bizerror"
	"contraflow/domain/stage"
	"contraflow/domain/template"
	"contraflow/misc"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterTemplateHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-templates", middleWares...)

	handler := &templateHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateTemplate)
	g.GET("", handler.handleQueryTemplates)
	g.GET(":id", handler.handleDetailTemplate)
	g.PUT(":id/stages", handler.handleUpdateDraftStages)
	g.POST(":id/publishing", handler.handlePublishTemplate)
	g.POST(":id/next-draft", handler.handleNextDraft)
	g.POST(":id/archiving", handler.handleArchiveTemplate)
}

type templateHandler struct {
	validator *validator.Validate
}

func parseIdParam(c *gin.Context, name string) (types.ID, bool) {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param",
			Message: "invalid id '" + c.Param(name) + "'"})
		return 0, false
	}
	return id, true
}

func (h *templateHandler) handleCreateTemplate(c *gin.Context) {
	creation := template.TemplateCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := template.CreateTemplateFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *templateHandler) handleQueryTemplates(c *gin.Context) {
	query := template.TemplateQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	templates, err := template.QueryTemplatesFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, templates)
}

func (h *templateHandler) handleDetailTemplate(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	record, err := template.DetailTemplateFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *templateHandler) handleUpdateDraftStages(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	var stages stage.Stages
	err := c.ShouldBindBodyWith(&stages, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := template.UpdateDraftStagesFunc(id, stages, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *templateHandler) handlePublishTemplate(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	record, err := template.PublishTemplateFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *templateHandler) handleNextDraft(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	record, err := template.NextDraftOfTemplateFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *templateHandler) handleArchiveTemplate(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	if err := template.ArchiveTemplateFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}
