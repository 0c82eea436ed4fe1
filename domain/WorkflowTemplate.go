package domain

import (
	"contraflow/domain/stage"

	"github.com/fundwit/go-commons/types"
)

const (
	TemplateStatusDraft     = "draft"
	TemplateStatusPublished = "published"
	TemplateStatusArchived  = "archived"
)

// WorkflowTemplate is immutable once published; edits produce the next draft
// version.
type WorkflowTemplate struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name string   `json:"name"`

	ContractType string       `json:"contractType"`
	Stages       stage.Stages `json:"stages" sql:"type:TEXT"`

	Version int    `json:"version"`
	Status  string `json:"status"`

	CreateTime  types.Timestamp `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
	PublishTime types.Timestamp `json:"publishTime" sql:"type:DATETIME(3)"`
}

func (t *WorkflowTemplate) TableName() string {
	return "workflow_templates"
}
