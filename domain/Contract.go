package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	SigningStatusUnsigned = "unsigned"
	SigningStatusSigned   = "signed"
)

type Contract struct {
	ID    types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Title string   `json:"title"`

	ContractType string   `json:"contractType"`
	EntityID     types.ID `json:"entityId"`
	ProjectID    types.ID `json:"projectId"` // zero when the contract is not project scoped

	// StoragePath locates the source document in the blob store.
	StoragePath string `json:"storagePath"`

	// WorkflowState mirrors the active instance's current stage, for display.
	WorkflowState string `json:"workflowState"`
	SigningStatus string `json:"signingStatus"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

func (c *Contract) TableName() string {
	return "contracts"
}
