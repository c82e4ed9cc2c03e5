package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const (
	EventTypeWorkflowStart            = "WORKFLOW_START"
	EventTypeWorkflowComplete         = "WORKFLOW_COMPLETE"
	EventTypeWorkflowEndedByCondition = "WORKFLOW_ENDED_BY_CONDITION"
	EventTypeWorkflowResume           = "WORKFLOW_RESUME"

	EventTypeTaskStart    = "TASK_START"
	EventTypeTaskComplete = "TASK_COMPLETE"
	EventTypeTaskSkip     = "TASK_SKIP"

	EventTypePerformerCreated  = "PERFORMER_CREATED"
	EventTypePerformerDeleted  = "PERFORMER_DELETED"
	EventTypePerformersUpdated = "PERFORMERS_UPDATED"
	EventTypeDueDateChanged    = "DUE_DATE_CHANGED"
)

type EventType string

type Payload map[string]interface{}

func (p Payload) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&p)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (p *Payload) Scan(v interface{}) error {
	if v == nil {
		*p = nil
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonBytes, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonBytes)
	}
	if jsonString == "" {
		*p = nil
		return nil
	}
	return json.Unmarshal([]byte(jsonString), p)
}

type Event struct {
	AccountID  types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TaskID     types.ID `json:"taskId" sql:"type:BIGINT UNSIGNED"`

	EventType EventType `json:"eventType"`
	Payload   Payload   `json:"payload" sql:"type:TEXT"`

	CreatorID   types.ID `json:"creatorId" sql:"type:BIGINT UNSIGNED"`
	CreatorName string   `json:"creatorName"`
}

// EventRecord is an append-only row of the workflow audit log. Records are
// written inside the transaction of the mutation they describe.
type EventRecord struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Event

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`
}

func (r *EventRecord) TableName() string {
	return "events"
}
