package authority

import (
	"strings"

	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/idgen"
	"contraflow/persistence"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateAuthorityFunc  = CreateAuthority
	QueryAuthoritiesFunc = QueryAuthorities
	HasAuthorityFunc     = HasAuthority
)

// SigningAuthority asserts a person may countersign on behalf of an entity,
// optionally narrowed to a project and a contract type pattern ('*' matches
// any type).
type SigningAuthority struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	EntityID  types.ID `json:"entityId" gorm:"index:idx_authority_entity"`
	ProjectID types.ID `json:"projectId"` // zero means any project
	UserID    types.ID `json:"userId"`

	ContractTypePattern string `json:"contractTypePattern"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

func (a *SigningAuthority) TableName() string {
	return "signing_authorities"
}

type AuthorityCreation struct {
	EntityID            types.ID `json:"entityId" validate:"required"`
	ProjectID           types.ID `json:"projectId"`
	UserID              types.ID `json:"userId" validate:"required"`
	ContractTypePattern string   `json:"contractTypePattern"`
}

type AuthorityQuery struct {
	EntityID types.ID `form:"entityId"`
	UserID   types.ID `form:"userId"`
}

func CreateAuthority(c *AuthorityCreation, sec *session.Session) (*SigningAuthority, error) {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}

	pattern := c.ContractTypePattern
	if pattern == "" {
		pattern = "*"
	}
	a := &SigningAuthority{
		ID:                  idgen.NextID(idWorker),
		EntityID:            c.EntityID,
		ProjectID:           c.ProjectID,
		UserID:              c.UserID,
		ContractTypePattern: pattern,
		CreateTime:          types.CurrentTimestamp(),
	}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func QueryAuthorities(query *AuthorityQuery, sec *session.Session) (*[]SigningAuthority, error) {
	var authorities []SigningAuthority
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	q := db.Model(&SigningAuthority{})
	if query.EntityID != 0 {
		q = q.Where("entity_id = ?", query.EntityID)
	}
	if query.UserID != 0 {
		q = q.Where("user_id = ?", query.UserID)
	}
	if err := q.Find(&authorities).Error; err != nil {
		return nil, err
	}
	return &authorities, nil
}

// HasAuthority resolves whether any provisioned record allows countersigning
// for the contract's entity/project/type. A project-specific record outranks
// an entity-only record, which outranks a contract-type wildcard; ranking
// only matters for diagnostics since any match grants authority. Absence of a
// match requires manual provisioning, never a retry.
func HasAuthority(entityID, projectID types.ID, contractType string, sec *session.Session) (bool, error) {
	var records []SigningAuthority
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	q := db.Where("entity_id = ?", entityID)
	if projectID != 0 {
		q = q.Where("project_id = 0 OR project_id = ?", projectID)
	} else {
		q = q.Where("project_id = 0")
	}
	if err := q.Find(&records).Error; err != nil {
		return false, err
	}

	best := -1
	for _, r := range records {
		score, matched := matchScore(&r, projectID, contractType)
		if !matched {
			continue
		}
		if score > best {
			best = score
		}
	}
	return best >= 0, nil
}

// matchScore: project-specific match +4, exact contract-type match +1;
// wildcard matches score 0.
func matchScore(r *SigningAuthority, projectID types.ID, contractType string) (int, bool) {
	score := 0
	if r.ProjectID != 0 {
		if projectID == 0 || r.ProjectID != projectID {
			return 0, false
		}
		score += 4
	}
	pattern := strings.ToLower(r.ContractTypePattern)
	if pattern != "" && pattern != "*" {
		if pattern != strings.ToLower(contractType) {
			return 0, false
		}
		score++
	}
	return score, true
}
