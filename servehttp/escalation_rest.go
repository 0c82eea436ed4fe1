package servehttp

import (
	"net/http"

	"contraflow/bizerror"
	"contraflow/domain/escalation"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterEscalationHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	handler := &escalationHandler{
		validator: validator.New(),
	}

	rules := r.Group("/v1/escalation-rules", middleWares...)
	rules.POST("", handler.handleCreateRule)
	rules.GET("", handler.handleQueryRules)

	events := r.Group("/v1/escalations", middleWares...)
	events.GET("", handler.handleQueryEscalations)
	events.POST("checking", handler.handleCheckSlaBreaches)
	events.POST(":id/resolving", handler.handleResolveEscalation)
}

type escalationHandler struct {
	validator *validator.Validate
}

type checkResult struct {
	Created int `json:"created"`
}

func (h *escalationHandler) handleCreateRule(c *gin.Context) {
	creation := escalation.RuleCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	rule, err := escalation.CreateRuleFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *escalationHandler) handleQueryRules(c *gin.Context) {
	var templateID types.ID
	if raw := c.Query("templateId"); raw != "" {
		id, err := types.ParseID(raw)
		if err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		templateID = id
	}

	rules, err := escalation.QueryRulesFunc(templateID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, rules)
}

func (h *escalationHandler) handleQueryEscalations(c *gin.Context) {
	query := escalation.EscalationQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	events, err := escalation.QueryEscalationsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, events)
}

// handleCheckSlaBreaches is the external trigger of the scan; a cron hits it
// at a fixed interval.
func (h *escalationHandler) handleCheckSlaBreaches(c *gin.Context) {
	created, err := escalation.CheckSlaBreachesFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, &checkResult{Created: created})
}

func (h *escalationHandler) handleResolveEscalation(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	resolved, err := escalation.ResolveEscalationFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, resolved)
}
