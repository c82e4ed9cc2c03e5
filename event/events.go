package event

import (
	"pneumatic/domain"
	"pneumatic/idgen"
	"pneumatic/persistence"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	eventIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	EventPersistCreateFunc = eventPersistCreate
	QueryEventsFunc        = QueryEvents
)

func CreateEvent(workflow *domain.Workflow, taskID types.ID, eventType EventType, payload Payload,
	identity *session.Identity, db *gorm.DB) (*EventRecord, error) {

	record := EventRecord{
		ID: idgen.NextID(eventIdWorker),
		Event: Event{
			AccountID:  workflow.AccountID,
			WorkflowID: workflow.ID,
			TaskID:     taskID,

			EventType: eventType,
			Payload:   payload,

			CreatorID:   identity.ID,
			CreatorName: identity.Name,
		},
		Timestamp: types.CurrentTimestamp(),
	}
	if err := EventPersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}

func eventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

func QueryEvents(workflowID types.ID, sec *session.Context) ([]EventRecord, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	workflow := domain.Workflow{}
	if err := db.Where(&domain.Workflow{ID: workflowID}).First(&workflow).Error; err != nil {
		return nil, err
	}
	if workflow.AccountID != sec.Identity.AccountID {
		return nil, domain.ErrNotFound
	}

	var records []EventRecord
	if err := db.Where(&EventRecord{Event: Event{WorkflowID: workflowID}}).
		Order("timestamp ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
