package servehttp

import (
	"net/http"

	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/domain/kyc"
	"contraflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterContractHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/contracts", middleWares...)

	handler := &contractHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateContract)
	g.GET("", handler.handleQueryContracts)
	g.GET(":id", handler.handleDetailContract)

	g.POST(":id/kyc-pack", handler.handleCreateKycPack)
	g.GET(":id/kyc-pack/missing-items", handler.handleMissingItems)
}

func RegisterKycItemHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/kyc-items", middleWares...)

	handler := &contractHandler{
		validator: validator.New(),
	}
	g.PUT(":id", handler.handleCompleteItem)
}

type contractHandler struct {
	validator *validator.Validate
}

type kycPackCreation struct {
	Items []kyc.ItemCreation `json:"items" validate:"required,min=1,dive"`
}

type kycItemUpdate struct {
	Status string `json:"status" validate:"required"`
	Value  string `json:"value"`
}

func (h *contractHandler) handleCreateContract(c *gin.Context) {
	creation := domain.ContractCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	contract, err := domain.CreateContractFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *contractHandler) handleQueryContracts(c *gin.Context) {
	query := domain.ContractQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	contracts, err := domain.QueryContractsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, contracts)
}

func (h *contractHandler) handleDetailContract(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	contract, err := domain.DetailContractFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *contractHandler) handleCreateKycPack(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	creation := kycPackCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	pack, err := kyc.CreatePackFunc(id, creation.Items, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, pack)
}

func (h *contractHandler) handleMissingItems(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	items, err := kyc.MissingItemsFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *contractHandler) handleCompleteItem(c *gin.Context) {
	id, ok := parseIdParam(c, "id")
	if !ok {
		return
	}

	update := kycItemUpdate{}
	err := c.ShouldBindBodyWith(&update, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(update); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	if err := kyc.CompleteItemFunc(id, update.Status, update.Value, session.ExtractSessionFromGinContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}
