package event

import (
	"contraflow/idgen"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var eventIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

// CreateEvent appends an audit record inside the caller's transaction.
func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, category string,
	details Details, identity *session.Identity, db *gorm.DB) (*EventRecord, error) {

	record := EventRecord{
		ID: idgen.NextID(eventIdWorker),
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			Category: category,
			Details:  details,

			CreatorId:   identity.ID,
			CreatorName: identity.Name,
		},
		Synced:    false,
		Timestamp: types.CurrentTimestamp(),
	}
	if err := EventPersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}
