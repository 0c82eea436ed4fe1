package indices

import (
	"context"

	"contraflow/client/es"
	"contraflow/event"
	"contraflow/persistence"

	"github.com/fundwit/go-commons/types"
)

const AuditEventsIndex = "audit-events"

const handlerIdentifier = "auditIndexSync"

// Bootstrap registers the audit sink handler: committed audit events are
// mirrored into Elasticsearch, best-effort.
func Bootstrap() {
	event.EventHandlers = append(event.EventHandlers, SyncAuditEventHandler)
}

func SyncAuditEventHandler(record *event.EventRecord) *event.EventHandleResult {
	if record == nil {
		return nil
	}
	if err := es.IndexFunc(AuditEventsIndex, record.ID, record); err != nil {
		return &event.EventHandleResult{Success: false, Message: err.Error(), HandlerIdentifier: handlerIdentifier}
	}
	if err := markEventSynced(record.ID); err != nil {
		return &event.EventHandleResult{Success: false, Message: err.Error(), HandlerIdentifier: handlerIdentifier}
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: handlerIdentifier}
}

func markEventSynced(id types.ID) error {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	return db.Model(&event.EventRecord{}).Where("id = ?", id).Update("synced", true).Error
}
