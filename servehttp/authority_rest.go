package servehttp

import (
	"net/http"

	"contraflow/bizerror"
	"contraflow/domain/authority"
	"contraflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterAuthorityHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/signing-authorities", middleWares...)

	handler := &authorityHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateAuthority)
	g.GET("", handler.handleQueryAuthorities)
}

type authorityHandler struct {
	validator *validator.Validate
}

func (h *authorityHandler) handleCreateAuthority(c *gin.Context) {
	creation := authority.AuthorityCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := authority.CreateAuthorityFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *authorityHandler) handleQueryAuthorities(c *gin.Context) {
	query := authority.AuthorityQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	records, err := authority.QueryAuthoritiesFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}
