package workflow

import (
	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/domain/authority"
	"contraflow/domain/kyc"
	"contraflow/domain/stage"
	"contraflow/event"
	"contraflow/idgen"
	"contraflow/persistence"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	StartWorkflowFunc  = StartWorkflow
	RecordActionFunc   = RecordAction
	CancelWorkflowFunc = CancelWorkflow
	ActiveInstanceFunc = ActiveInstance
	HistoryFunc        = History
)

type ActionRecording struct {
	StageName string        `json:"stageName" validate:"required"`
	Action    stage.Action  `json:"action" validate:"required"`
	Comment   string        `json:"comment"`
	Artifacts event.Details `json:"artifacts"`
}

// StartWorkflow creates the single active instance of a contract from a
// published template, capturing the template version.
func StartWorkflow(contractID, templateID types.ID, sec *session.Session) (*domain.WorkflowInstance, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	var instance *domain.WorkflowInstance
	var ev *event.EventRecord
	err1 := db.Transaction(func(tx *gorm.DB) error {
		template := domain.WorkflowTemplate{}
		if err := tx.Where(&domain.WorkflowTemplate{ID: templateID}).First(&template).Error; err != nil {
			return err
		}
		if template.Status != domain.TemplateStatusPublished {
			return bizerror.ErrTemplateNotPublished
		}

		contract := domain.Contract{}
		if err := tx.Where(&domain.Contract{ID: contractID}).First(&contract).Error; err != nil {
			return err
		}

		// the row lock serializes concurrent starts on the same contract
		existing := domain.WorkflowInstance{}
		err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where("contract_id = ? AND state = ?", contractID, domain.WorkflowStateActive).
			First(&existing).Error
		if err == nil {
			return bizerror.ErrWorkflowAlreadyActive
		}
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}

		firstStage, ok := template.Stages.First()
		if !ok {
			return bizerror.ErrUnknownStage
		}

		now := types.CurrentTimestamp()
		instance = &domain.WorkflowInstance{
			ID:              idgen.NextID(idWorker),
			ContractID:      contractID,
			TemplateID:      template.ID,
			TemplateVersion: template.Version,
			CurrentStage:    firstStage.Name,
			State:           domain.WorkflowStateActive,
			StartedAt:       now,
		}
		if err := tx.Create(instance).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Contract{}).Where("id = ?", contractID).
			Update("workflow_state", firstStage.Name).Error; err != nil {
			return err
		}

		ev, err = event.CreateEvent("workflow_instance", instance.ID, contract.Title,
			event.CategoryWorkflowStarted,
			event.Details{"template": template.Name, "templateVersion": template.Version},
			&sec.Identity, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return instance, nil
}

// RecordAction appends one immutable stage action and applies the stage
// transition. Gating failures never advance state.
func RecordAction(instanceID types.ID, recording *ActionRecording, sec *session.Session) (*domain.WorkflowStageAction, error) {
	if !recording.Action.IsValid() {
		return nil, &bizerror.ErrBadParam{}
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	var stageAction *domain.WorkflowStageAction
	var ev *event.EventRecord
	err1 := db.Transaction(func(tx *gorm.DB) error {
		instance := domain.WorkflowInstance{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&domain.WorkflowInstance{ID: instanceID}).First(&instance).Error; err != nil {
			return err
		}
		if instance.IsTerminal() {
			return bizerror.ErrWorkflowTerminal
		}
		if instance.CurrentStage != recording.StageName {
			return bizerror.ErrStaleStage
		}

		template := domain.WorkflowTemplate{}
		if err := tx.Where(&domain.WorkflowTemplate{ID: instance.TemplateID}).First(&template).Error; err != nil {
			return err
		}
		currentStage, currentIndex, found := template.Stages.Find(instance.CurrentStage)
		if !found {
			return bizerror.ErrUnknownStage
		}

		if currentStage.OwnerRole != "" && !sec.HasRole(currentStage.OwnerRole) && !sec.IsAdmin() {
			return bizerror.ErrForbidden
		}

		contract := domain.Contract{}
		if err := tx.Where(&domain.Contract{ID: instance.ContractID}).First(&contract).Error; err != nil {
			return err
		}

		// skip is the administrative override: it advances without gates
		if recording.Action == stage.ActionApprove && currentStage.Type.IsSigningType() {
			ready, err := kyc.IsReadyForSigningFunc(contract.ID, sec)
			if err != nil {
				return err
			}
			if !ready {
				return bizerror.ErrKycIncomplete
			}
		}
		if recording.Action == stage.ActionApprove && currentStage.Type == stage.TypeCountersign {
			authorized, err := authority.HasAuthorityFunc(contract.EntityID,
				contract.ProjectID, contract.ContractType, sec)
			if err != nil {
				return err
			}
			if !authorized {
				return bizerror.ErrNoSigningAuthority
			}
		}

		stageAction = &domain.WorkflowStageAction{
			ID:         idgen.NextID(idWorker),
			InstanceID: instance.ID,
			StageName:  recording.StageName,
			Action:     recording.Action,
			ActorID:    sec.Identity.ID,
			ActorEmail: sec.Identity.Email,
			Comment:    recording.Comment,
			Artifacts:  recording.Artifacts,
			CreateTime: types.CurrentTimestamp(),
		}
		if err := tx.Create(stageAction).Error; err != nil {
			return err
		}

		if err := applyTransition(tx, &instance, &contract, template.Stages, currentIndex, recording.Action); err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent("workflow_instance", instance.ID, contract.Title,
			event.CategoryWorkflowStageAction,
			event.Details{"stage": recording.StageName, "action": string(recording.Action)},
			&sec.Identity, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return stageAction, nil
}

func applyTransition(tx *gorm.DB, instance *domain.WorkflowInstance, contract *domain.Contract,
	stages stage.Stages, currentIndex int, action stage.Action) error {

	switch action {
	case stage.ActionApprove, stage.ActionSkip:
		next, ok := stages.NextOf(currentIndex)
		if !ok {
			now := types.CurrentTimestamp()
			changes := map[string]interface{}{
				"state": domain.WorkflowStateCompleted, "completed_at": now,
			}
			if err := tx.Model(&domain.WorkflowInstance{}).Where("id = ?", instance.ID).
				Update(changes).Error; err != nil {
				return err
			}
			instance.State = domain.WorkflowStateCompleted
			instance.CompletedAt = now
			return mirrorContractState(tx, contract.ID, domain.WorkflowStateCompleted)
		}
		if err := tx.Model(&domain.WorkflowInstance{}).Where("id = ?", instance.ID).
			Update("current_stage", next.Name).Error; err != nil {
			return err
		}
		instance.CurrentStage = next.Name
		return mirrorContractState(tx, contract.ID, next.Name)

	case stage.ActionReject:
		prev, ok := stages.PrevOf(currentIndex)
		if !ok {
			return bizerror.ErrUnknownStage
		}
		if err := tx.Model(&domain.WorkflowInstance{}).Where("id = ?", instance.ID).
			Update("current_stage", prev.Name).Error; err != nil {
			return err
		}
		instance.CurrentStage = prev.Name
		return mirrorContractState(tx, contract.ID, prev.Name)

	case stage.ActionRework:
		// stays in place; the appended action row resets the stage entry
		// clock used by the escalation scan
		return nil
	}
	return bizerror.ErrUnknownStage
}

func mirrorContractState(tx *gorm.DB, contractID types.ID, state string) error {
	return tx.Model(&domain.Contract{}).Where("id = ?", contractID).
		Update("workflow_state", state).Error
}

// CancelWorkflow moves an active instance to the terminal cancelled state.
func CancelWorkflow(instanceID types.ID, sec *session.Session) error {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return bizerror.ErrForbidden
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	var ev *event.EventRecord
	err1 := db.Transaction(func(tx *gorm.DB) error {
		instance := domain.WorkflowInstance{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&domain.WorkflowInstance{ID: instanceID}).First(&instance).Error; err != nil {
			return err
		}
		if instance.IsTerminal() {
			return bizerror.ErrWorkflowTerminal
		}
		now := types.CurrentTimestamp()
		changes := map[string]interface{}{
			"state": domain.WorkflowStateCancelled, "completed_at": now,
		}
		if err := tx.Model(&domain.WorkflowInstance{}).Where("id = ?", instanceID).
			Update(changes).Error; err != nil {
			return err
		}
		if err := mirrorContractState(tx, instance.ContractID, domain.WorkflowStateCancelled); err != nil {
			return err
		}
		var err error
		ev, err = event.CreateEvent("workflow_instance", instance.ID, "",
			event.CategoryWorkflowStageAction, event.Details{"action": "cancel"}, &sec.Identity, tx)
		return err
	})
	if err1 != nil {
		return err1
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return nil
}

func ActiveInstance(contractID types.ID, sec *session.Session) (*domain.WorkflowInstance, error) {
	instance := domain.WorkflowInstance{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where("contract_id = ? AND state = ?", contractID, domain.WorkflowStateActive).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func History(instanceID types.ID, sec *session.Session) ([]domain.WorkflowStageAction, error) {
	actions := []domain.WorkflowStageAction{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where("instance_id = ?", instanceID).Order("create_time ASC").
		Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// StageEntryTime derives when the instance entered its current stage: the
// latest action row for (instance, current stage), else the instance start.
func StageEntryTime(db *gorm.DB, instance *domain.WorkflowInstance) (types.Timestamp, error) {
	lastAction := domain.WorkflowStageAction{}
	err := db.Where("instance_id = ? AND stage_name = ?", instance.ID, instance.CurrentStage).
		Order("create_time DESC").First(&lastAction).Error
	if err == nil {
		return lastAction.CreateTime, nil
	}
	if gorm.IsRecordNotFoundError(err) {
		return instance.StartedAt, nil
	}
	return types.Timestamp{}, err
}
