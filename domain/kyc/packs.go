package kyc

import (
	"errors"

	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/event"
	"contraflow/idgen"
	"contraflow/persistence"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

const (
	PackStatusIncomplete = "incomplete"
	PackStatusComplete   = "complete"

	ItemStatusPending       = "pending"
	ItemStatusCompleted     = "completed"
	ItemStatusNotApplicable = "not_applicable"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreatePackFunc        = CreatePack
	CompleteItemFunc      = CompleteItem
	MissingItemsFunc      = MissingItems
	IsReadyForSigningFunc = IsReadyForSigning
)

// KycPack is an immutable snapshot of checklist items attached to one
// contract.
type KycPack struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ContractID types.ID `json:"contractId" gorm:"index:idx_pack_contract"`

	Status     string          `json:"status"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

func (p *KycPack) TableName() string {
	return "kyc_packs"
}

type KycPackItem struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	PackID types.ID `json:"packId" gorm:"index:idx_item_pack"`

	Label      string `json:"label"`
	FieldType  string `json:"fieldType"`
	IsRequired bool   `json:"isRequired"`

	Status string `json:"status"`
	Value  string `json:"value"`

	CompletedBy types.ID        `json:"completedBy"`
	CompletedAt types.Timestamp `json:"completedAt" sql:"type:DATETIME(3)"`
}

func (i *KycPackItem) TableName() string {
	return "kyc_pack_items"
}

type ItemCreation struct {
	Label      string `json:"label" validate:"required"`
	FieldType  string `json:"fieldType"`
	IsRequired bool   `json:"isRequired"`
}

// CreatePack snapshots checklist items for a contract. An existing pack is
// returned untouched.
func CreatePack(contractID types.ID, items []ItemCreation, sec *session.Session) (*KycPack, error) {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.HasRole(domain.RoleContractManager) && !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}

	pack := KycPack{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where(&KycPack{ContractID: contractID}).First(&pack).Error
		if err == nil {
			return nil
		}
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}

		pack = KycPack{
			ID: idgen.NextID(idWorker), ContractID: contractID,
			Status: PackStatusIncomplete, CreateTime: types.CurrentTimestamp(),
		}
		if err := tx.Create(&pack).Error; err != nil {
			return err
		}
		for _, item := range items {
			record := KycPackItem{
				ID: idgen.NextID(idWorker), PackID: pack.ID,
				Label: item.Label, FieldType: item.FieldType, IsRequired: item.IsRequired,
				Status: ItemStatusPending,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

// CompleteItem marks one item completed (or not applicable) and recomputes
// the pack status.
func CompleteItem(itemID types.ID, status, value string, sec *session.Session) error {
	if status != ItemStatusCompleted && status != ItemStatusNotApplicable {
		return &bizerror.ErrBadParam{Cause: errors.New("status must be completed or not_applicable")}
	}
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.HasRole(domain.RoleContractManager) && !sec.IsAdmin() {
		return bizerror.ErrForbidden
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	var packID types.ID
	err := db.Transaction(func(tx *gorm.DB) error {
		item := KycPackItem{}
		if err := tx.Where(&KycPackItem{ID: itemID}).First(&item).Error; err != nil {
			return err
		}
		packID = item.PackID

		changes := map[string]interface{}{
			"status": status, "value": value,
			"completed_by": sec.Identity.ID, "completed_at": types.CurrentTimestamp(),
		}
		if err := tx.Model(&KycPackItem{}).Where("id = ?", itemID).Update(changes).Error; err != nil {
			return err
		}

		var pending int
		if err := tx.Model(&KycPackItem{}).
			Where("pack_id = ? AND is_required = ? AND status = ?", item.PackID, true, ItemStatusPending).
			Count(&pending).Error; err != nil {
			return err
		}
		packStatus := PackStatusIncomplete
		if pending == 0 {
			packStatus = PackStatusComplete
		}
		if err := tx.Model(&KycPack{}).Where("id = ?", item.PackID).Update("status", packStatus).Error; err != nil {
			return err
		}

		_, err := event.CreateEvent("kyc_pack", item.PackID, item.Label, event.CategoryKycPackUpdated,
			event.Details{"item": item.Label, "status": status}, &sec.Identity, tx)
		return err
	})
	_ = packID
	return err
}

// MissingItems lists required, still-pending items of the contract's pack.
func MissingItems(contractID types.ID, sec *session.Session) ([]KycPackItem, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	pack := KycPack{}
	if err := db.Where(&KycPack{ContractID: contractID}).First(&pack).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return []KycPackItem{}, nil
		}
		return nil, err
	}
	items := []KycPackItem{}
	if err := db.Where("pack_id = ? AND is_required = ? AND status = ?", pack.ID, true, ItemStatusPending).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// IsReadyForSigning: no pack means ready; otherwise every required item must
// be completed or not applicable. Derived fresh from item rows on each call.
func IsReadyForSigning(contractID types.ID, sec *session.Session) (bool, error) {
	missing, err := MissingItems(contractID, sec)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}
