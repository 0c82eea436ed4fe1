package domain

import (
	"contraflow/idgen"
	"contraflow/persistence"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

var (
	contractIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateContractFunc = CreateContract
	DetailContractFunc = DetailContract
	QueryContractsFunc = QueryContracts
)

type ContractCreation struct {
	Title        string   `json:"title" validate:"required"`
	ContractType string   `json:"contractType" validate:"required"`
	EntityID     types.ID `json:"entityId" validate:"required"`
	ProjectID    types.ID `json:"projectId"`
	StoragePath  string   `json:"storagePath"`
}

type ContractQuery struct {
	Title         string   `form:"title"`
	ContractType  string   `form:"contractType"`
	EntityID      types.ID `form:"entityId"`
	WorkflowState string   `form:"workflowState"`
}

func CreateContract(c *ContractCreation, sec *session.Session) (*Contract, error) {
	contract := &Contract{
		ID:           idgen.NextID(contractIdWorker),
		Title:        c.Title,
		ContractType: c.ContractType,
		EntityID:     c.EntityID,
		ProjectID:    c.ProjectID,
		StoragePath:  c.StoragePath,

		SigningStatus: SigningStatusUnsigned,
		CreateTime:    types.CurrentTimestamp(),
	}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Create(contract).Error; err != nil {
		return nil, err
	}
	return contract, nil
}

func DetailContract(id types.ID, sec *session.Session) (*Contract, error) {
	contract := Contract{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&Contract{ID: id}).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func QueryContracts(query *ContractQuery, sec *session.Session) (*[]Contract, error) {
	var contracts []Contract
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	q := db.Model(&Contract{})
	if query.Title != "" {
		q = q.Where("title like ?", "%"+query.Title+"%")
	}
	if query.ContractType != "" {
		q = q.Where("contract_type = ?", query.ContractType)
	}
	if query.EntityID != 0 {
		q = q.Where("entity_id = ?", query.EntityID)
	}
	if query.WorkflowState != "" {
		q = q.Where("workflow_state = ?", query.WorkflowState)
	}
	if err := q.Order("create_time DESC").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return &contracts, nil
}
