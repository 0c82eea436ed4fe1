package domain

import (
	"contraflow/domain/stage"
	"contraflow/event"

	"github.com/fundwit/go-commons/types"
)

const (
	WorkflowStateActive    = "active"
	WorkflowStateCompleted = "completed"
	WorkflowStateCancelled = "cancelled"
)

// WorkflowInstance is one contract's live traversal of a template's ordered
// stages. CurrentStage is the single authoritative stage pointer, mutated
// only inside the RecordAction transaction.
type WorkflowInstance struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	ContractID types.ID `json:"contractId" gorm:"index:idx_instance_contract"`
	TemplateID types.ID `json:"templateId"`
	// TemplateVersion is captured at start time; later template edits never
	// change in-flight instances.
	TemplateVersion int `json:"templateVersion"`

	CurrentStage string `json:"currentStage"`
	State        string `json:"state"`

	StartedAt   types.Timestamp `json:"startedAt" sql:"type:DATETIME(3) NOT NULL"`
	CompletedAt types.Timestamp `json:"completedAt" sql:"type:DATETIME(3)"`
}

func (i *WorkflowInstance) TableName() string {
	return "workflow_instances"
}

func (i *WorkflowInstance) IsTerminal() bool {
	return i.State == WorkflowStateCompleted || i.State == WorkflowStateCancelled
}

// WorkflowStageAction is the append-only action log; rows are never mutated
// or deleted. The most recent row per (instance, stage) defines the stage
// entry time used by the escalation scan.
type WorkflowStageAction struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	InstanceID types.ID     `json:"instanceId" gorm:"index:idx_action_instance_stage"`
	StageName  string       `json:"stageName" gorm:"index:idx_action_instance_stage"`
	Action     stage.Action `json:"action"`

	ActorID    types.ID      `json:"actorId"`
	ActorEmail string        `json:"actorEmail"`
	Comment    string        `json:"comment"`
	Artifacts  event.Details `json:"artifacts" sql:"type:TEXT"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (a *WorkflowStageAction) TableName() string {
	return "workflow_stage_actions"
}
