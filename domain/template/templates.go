package template

import (
	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/domain/stage"
	"contraflow/idgen"
	"contraflow/persistence"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateTemplateFunc      = CreateTemplate
	UpdateDraftStagesFunc   = UpdateDraftStages
	PublishTemplateFunc     = PublishTemplate
	ArchiveTemplateFunc     = ArchiveTemplate
	DetailTemplateFunc      = DetailTemplate
	QueryTemplatesFunc      = QueryTemplates
	NextDraftOfTemplateFunc = NextDraftOfTemplate
)

type TemplateCreation struct {
	Name         string       `json:"name" validate:"required"`
	ContractType string       `json:"contractType" validate:"required"`
	Stages       stage.Stages `json:"stages" validate:"required,dive"`
}

type TemplateQuery struct {
	Name         string `form:"name"`
	ContractType string `form:"contractType"`
	Status       string `form:"status"`
}

func CreateTemplate(c *TemplateCreation, sec *session.Session) (*domain.WorkflowTemplate, error) {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if err := c.Stages.Validate(); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}

	t := &domain.WorkflowTemplate{
		ID:           idgen.NextID(idWorker),
		Name:         c.Name,
		ContractType: c.ContractType,
		Stages:       c.Stages,
		Version:      0,
		Status:       domain.TemplateStatusDraft,
		CreateTime:   types.CurrentTimestamp(),
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateDraftStages replaces the stage list of a draft. Published and
// archived templates are immutable.
func UpdateDraftStages(id types.ID, stages stage.Stages, sec *session.Session) (*domain.WorkflowTemplate, error) {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if err := stages.Validate(); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}

	t := domain.WorkflowTemplate{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowTemplate{ID: id}).First(&t).Error; err != nil {
			return err
		}
		if t.Status != domain.TemplateStatusDraft {
			return bizerror.ErrTemplatePublished
		}
		if err := tx.Model(&domain.WorkflowTemplate{}).Where("id = ?", id).
			Update("stages", stages).Error; err != nil {
			return err
		}
		t.Stages = stages
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PublishTemplate freezes a draft. The version is bumped monotonically over
// all templates sharing the lineage name.
func PublishTemplate(id types.ID, sec *session.Session) (*domain.WorkflowTemplate, error) {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}

	t := domain.WorkflowTemplate{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&domain.WorkflowTemplate{ID: id}).First(&t).Error; err != nil {
			return err
		}
		if t.Status != domain.TemplateStatusDraft {
			return bizerror.ErrTemplatePublished
		}

		var latest domain.WorkflowTemplate
		maxVersion := 0
		err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where("name = ?", t.Name).Order("version DESC").First(&latest).Error
		if err == nil {
			maxVersion = latest.Version
		} else if !gorm.IsRecordNotFoundError(err) {
			return err
		}

		now := types.CurrentTimestamp()
		changes := map[string]interface{}{
			"status": domain.TemplateStatusPublished, "version": maxVersion + 1, "publish_time": now,
		}
		if err := tx.Model(&domain.WorkflowTemplate{}).Where("id = ?", id).Update(changes).Error; err != nil {
			return err
		}
		t.Status = domain.TemplateStatusPublished
		t.Version = maxVersion + 1
		t.PublishTime = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NextDraftOfTemplate copies a published template into a fresh draft, the
// only way to evolve a published lineage.
func NextDraftOfTemplate(id types.ID, sec *session.Session) (*domain.WorkflowTemplate, error) {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}

	draft := domain.WorkflowTemplate{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		origin := domain.WorkflowTemplate{}
		if err := tx.Where(&domain.WorkflowTemplate{ID: id}).First(&origin).Error; err != nil {
			return err
		}
		if origin.Status != domain.TemplateStatusPublished {
			return bizerror.ErrTemplateNotPublished
		}
		draft = domain.WorkflowTemplate{
			ID:           idgen.NextID(idWorker),
			Name:         origin.Name,
			ContractType: origin.ContractType,
			Stages:       origin.Stages,
			Version:      0,
			Status:       domain.TemplateStatusDraft,
			CreateTime:   types.CurrentTimestamp(),
		}
		return tx.Create(&draft).Error
	})
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func ArchiveTemplate(id types.ID, sec *session.Session) error {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return bizerror.ErrForbidden
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	return db.Transaction(func(tx *gorm.DB) error {
		t := domain.WorkflowTemplate{}
		if err := tx.Where(&domain.WorkflowTemplate{ID: id}).First(&t).Error; err != nil {
			return err
		}
		return tx.Model(&domain.WorkflowTemplate{}).Where("id = ?", id).
			Update("status", domain.TemplateStatusArchived).Error
	})
}

func DetailTemplate(id types.ID, sec *session.Session) (*domain.WorkflowTemplate, error) {
	t := domain.WorkflowTemplate{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.WorkflowTemplate{ID: id}).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func QueryTemplates(query *TemplateQuery, sec *session.Session) (*[]domain.WorkflowTemplate, error) {
	var templates []domain.WorkflowTemplate
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	q := db.Model(&domain.WorkflowTemplate{})
	if query.Name != "" {
		q = q.Where("name like ?", "%"+query.Name+"%")
	}
	if query.ContractType != "" {
		q = q.Where("contract_type = ?", query.ContractType)
	}
	if query.Status != "" {
		q = q.Where("status = ?", query.Status)
	}
	if err := q.Order("name ASC, version DESC").Find(&templates).Error; err != nil {
		return nil, err
	}
	return &templates, nil
}
