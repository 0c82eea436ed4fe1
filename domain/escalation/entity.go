package escalation

import (
	"github.com/fundwit/go-commons/types"
)

// EscalationRule configures an SLA threshold for one stage of one template.
type EscalationRule struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	TemplateID types.ID `json:"templateId" gorm:"index:idx_rule_template"`
	StageName  string   `json:"stageName"`

	SlaBreachHours int `json:"slaBreachHours"`
	Tier           int `json:"tier"`

	// escalation target: a role, a direct email address, or both
	TargetRole  string `json:"targetRole"`
	TargetEmail string `json:"targetEmail"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

func (r *EscalationRule) TableName() string {
	return "escalation_rules"
}

// EscalationEvent is a concrete breach record. At most one unresolved event
// exists per (instance, rule) pair.
type EscalationEvent struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	InstanceID types.ID `json:"instanceId" gorm:"index:idx_event_instance"`
	RuleID     types.ID `json:"ruleId" gorm:"index:idx_event_rule"`
	ContractID types.ID `json:"contractId"`

	StageName string `json:"stageName"`
	Tier      int    `json:"tier"`

	EscalatedAt types.Timestamp `json:"escalatedAt" sql:"type:DATETIME(3) NOT NULL"`
	ResolvedAt  types.Timestamp `json:"resolvedAt" sql:"type:DATETIME(3)"`
	ResolvedBy  types.ID        `json:"resolvedBy"`
}

func (e *EscalationEvent) TableName() string {
	return "escalation_events"
}

func (e *EscalationEvent) IsResolved() bool {
	return !e.ResolvedAt.Time().IsZero()
}
