package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const (
	CategoryWorkflowStarted     = "workflow_instance.start"
	CategoryWorkflowStageAction = "workflow_stage.action"
	CategoryWorkflowCompleted   = "workflow_instance.completed"
	CategorySigningSession      = "signing_session"
	CategoryEscalationCreated   = "escalation.created"
	CategoryEscalationResolved  = "escalation.resolved"
	CategoryKycPackUpdated      = "kyc_pack.updated"
)

type Details map[string]interface{}

type Event struct {
	SourceType string   `json:"sourceType"`
	SourceId   types.ID `json:"sourceId"`
	SourceDesc string   `json:"sourceDesc"`

	CreatorId   types.ID `json:"creatorId"`
	CreatorName string   `json:"creatorName"`

	Category string  `json:"category"`
	Details  Details `json:"details" sql:"type:TEXT"`
}

type EventRecord struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Event

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`
	Synced    bool            `json:"synced"`
}

func (r *EventRecord) TableName() string {
	return "events"
}

func (t Details) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *Details) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), c)
}
