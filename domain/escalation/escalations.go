package escalation

import (
	"fmt"
	"time"

	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/domain/workflow"
	"contraflow/event"
	"contraflow/idgen"
	"contraflow/notify"
	"contraflow/persistence"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateRuleFunc        = CreateRule
	QueryRulesFunc        = QueryRules
	CheckSlaBreachesFunc  = CheckSlaBreaches
	QueryEscalationsFunc  = QueryEscalations
	ResolveEscalationFunc = ResolveEscalation
)

type RuleCreation struct {
	TemplateID     types.ID `json:"templateId" validate:"required"`
	StageName      string   `json:"stageName" validate:"required"`
	SlaBreachHours int      `json:"slaBreachHours" validate:"required,min=1"`
	Tier           int      `json:"tier" validate:"min=1"`

	TargetRole  string `json:"targetRole"`
	TargetEmail string `json:"targetEmail"`
}

type EscalationQuery struct {
	InstanceID types.ID `form:"instanceId"`
	Unresolved bool     `form:"unresolved"`
}

func CreateRule(c *RuleCreation, sec *session.Session) (*EscalationRule, error) {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if c.Tier == 0 {
		c.Tier = 1
	}

	rule := EscalationRule{
		ID:         idgen.NextID(idWorker),
		TemplateID: c.TemplateID, StageName: c.StageName,
		SlaBreachHours: c.SlaBreachHours, Tier: c.Tier,
		TargetRole: c.TargetRole, TargetEmail: c.TargetEmail,
		CreateTime: types.CurrentTimestamp(),
	}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Create(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func QueryRules(templateID types.ID, sec *session.Session) ([]EscalationRule, error) {
	rules := []EscalationRule{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	q := db.Model(&EscalationRule{})
	if templateID != 0 {
		q = q.Where("template_id = ?", templateID)
	}
	if err := q.Order("template_id ASC, stage_name ASC, tier ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// CheckSlaBreaches is one bounded scan over active workflow instances. For
// each rule matching the instance's current stage, a breach creates exactly
// one unresolved EscalationEvent per (instance, rule). The caller schedules
// the scan; nothing here self-reschedules.
func CheckSlaBreaches(sec *session.Session) (int, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	instances := []domain.WorkflowInstance{}
	if err := db.Where("state = ?", domain.WorkflowStateActive).Find(&instances).Error; err != nil {
		return 0, err
	}

	created := 0
	now := time.Now()
	for i := range instances {
		instance := &instances[i]

		entryTime, err := workflow.StageEntryTime(db, instance)
		if err != nil {
			return created, err
		}
		elapsed := now.Sub(entryTime.Time())

		rules := []EscalationRule{}
		if err := db.Where("template_id = ? AND stage_name = ?", instance.TemplateID, instance.CurrentStage).
			Find(&rules).Error; err != nil {
			return created, err
		}

		for _, rule := range rules {
			if elapsed < time.Duration(rule.SlaBreachHours)*time.Hour {
				continue
			}
			ev, err := escalate(instance, &rule, sec)
			if err != nil {
				return created, err
			}
			if ev == nil {
				continue
			}
			created++
			notifyTarget(&rule, instance, ev)
		}
	}
	return created, nil
}

// escalate creates the breach record unless an unresolved one already exists.
// The row lock makes the check-then-insert atomic against a concurrent scan.
func escalate(instance *domain.WorkflowInstance, rule *EscalationRule, sec *session.Session) (*EscalationEvent, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	var created *EscalationEvent
	var record *event.EventRecord
	err1 := db.Transaction(func(tx *gorm.DB) error {
		existing := EscalationEvent{}
		err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where("instance_id = ? AND rule_id = ? AND resolved_at IS NULL", instance.ID, rule.ID).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}

		created = &EscalationEvent{
			ID:         idgen.NextID(idWorker),
			InstanceID: instance.ID, RuleID: rule.ID, ContractID: instance.ContractID,
			StageName: instance.CurrentStage, Tier: rule.Tier,
			EscalatedAt: types.CurrentTimestamp(),
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}

		record, err = event.CreateEvent("escalation_event", created.ID, instance.CurrentStage,
			event.CategoryEscalationCreated,
			event.Details{"instanceId": instance.ID.String(), "stage": instance.CurrentStage, "tier": rule.Tier},
			&sec.Identity, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}
	if created == nil {
		return nil, nil
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(record)
	}
	return created, nil
}

// notification is best-effort: the event row is the source of truth and a
// delivery failure never rolls it back
func notifyTarget(rule *EscalationRule, instance *domain.WorkflowInstance, ev *EscalationEvent) {
	recipient := rule.TargetEmail
	if recipient == "" {
		recipient = rule.TargetRole
	}
	if recipient == "" {
		return
	}
	subject := fmt.Sprintf("SLA breached: stage %s (tier %d)", ev.StageName, ev.Tier)
	body := fmt.Sprintf("Workflow instance %s has stayed in stage %s beyond %d hours.",
		instance.ID.String(), ev.StageName, rule.SlaBreachHours)
	if err := notify.SendFunc(recipient, subject, body); err != nil {
		logrus.Warnf("failed to notify escalation target %s: %v", recipient, err)
	}
}

func QueryEscalations(q *EscalationQuery, sec *session.Session) ([]EscalationEvent, error) {
	events := []EscalationEvent{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	query := db.Model(&EscalationEvent{})
	if q.InstanceID != 0 {
		query = query.Where("instance_id = ?", q.InstanceID)
	}
	if q.Unresolved {
		query = query.Where("resolved_at IS NULL")
	}
	if err := query.Order("escalated_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ResolveEscalation stamps the breach resolved. Resolving an already-resolved
// event is a no-op returning the stored record.
func ResolveEscalation(eventID types.ID, sec *session.Session) (*EscalationEvent, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	resolved := EscalationEvent{}
	var record *event.EventRecord
	err1 := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&EscalationEvent{ID: eventID}).First(&resolved).Error; err != nil {
			return err
		}
		if resolved.IsResolved() {
			return nil
		}

		now := types.CurrentTimestamp()
		changes := map[string]interface{}{"resolved_at": now, "resolved_by": sec.Identity.ID}
		if err := tx.Model(&EscalationEvent{}).Where("id = ?", eventID).Update(changes).Error; err != nil {
			return err
		}
		resolved.ResolvedAt = now
		resolved.ResolvedBy = sec.Identity.ID

		var err error
		record, err = event.CreateEvent("escalation_event", resolved.ID, resolved.StageName,
			event.CategoryEscalationResolved,
			event.Details{"stage": resolved.StageName, "tier": resolved.Tier},
			&sec.Identity, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}
	if record != nil && event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(record)
	}
	return &resolved, nil
}
