package stage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type Type string

const (
	TypeReview      Type = "review"
	TypeApproval    Type = "approval"
	TypeSigning     Type = "signing"
	TypeCountersign Type = "countersign"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeReview, TypeApproval, TypeSigning, TypeCountersign:
		return true
	}
	return false
}

// IsSigningType reports whether advancing past this stage requires the
// signing gates (kyc readiness, signing authority).
func (t Type) IsSigningType() bool {
	return t == TypeSigning || t == TypeCountersign
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionRework  Action = "rework"
	ActionSkip    Action = "skip"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRework, ActionSkip:
		return true
	}
	return false
}

type Stage struct {
	Name      string `json:"name" validate:"required"`
	Type      Type   `json:"type" validate:"required"`
	OwnerRole string `json:"ownerRole"`
}

// Stages is the ordered stage list of a workflow template, persisted as a
// JSON column.
type Stages []Stage

func (s Stages) Find(name string) (Stage, int, bool) {
	for i, stage := range s {
		if stage.Name == name {
			return stage, i, true
		}
	}
	return Stage{}, -1, false
}

func (s Stages) First() (Stage, bool) {
	if len(s) == 0 {
		return Stage{}, false
	}
	return s[0], true
}

// NextOf returns the stage after index, or false when index is the last.
func (s Stages) NextOf(index int) (Stage, bool) {
	if index < 0 || index+1 >= len(s) {
		return Stage{}, false
	}
	return s[index+1], true
}

// PrevOf returns the stage before index, or the stage itself when index is 0.
func (s Stages) PrevOf(index int) (Stage, bool) {
	if index < 0 || index >= len(s) {
		return Stage{}, false
	}
	if index == 0 {
		return s[0], true
	}
	return s[index-1], true
}

func (s Stages) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("stage list is empty")
	}
	seen := map[string]bool{}
	for _, stage := range s {
		if stage.Name == "" {
			return fmt.Errorf("stage name is empty")
		}
		if !stage.Type.IsValid() {
			return fmt.Errorf("unknown stage type %q of stage %q", stage.Type, stage.Name)
		}
		if seen[stage.Name] {
			return fmt.Errorf("duplicated stage name %q", stage.Name)
		}
		seen[stage.Name] = true
	}
	return nil
}

func (s Stages) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&s)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (s *Stages) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), s)
}
