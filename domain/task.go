package domain

import (
	"github.com/fundwit/go-commons/types"
)

// DirectlyStatus of a performer assignment. NO_STATUS marks a row derived
// from the template and never explicitly toggled by a user action.
const (
	DirectlyStatusNoStatus = "NO_STATUS"
	DirectlyStatusCreated  = "CREATED"
	DirectlyStatusDeleted  = "DELETED"
)

type Task struct {
	ID             types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID      types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID     types.ID `json:"workflowId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TaskTemplateID types.ID `json:"taskTemplateId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Number      int    `json:"number"`
	Name        string `json:"name"`
	Description string `json:"description" sql:"type:TEXT"`

	RequireCompletionByAll bool `json:"requireCompletionByAll"`

	IsCompleted bool `json:"isCompleted"`
	IsSkipped   bool `json:"isSkipped"`

	DateStarted   types.Timestamp  `json:"dateStarted" sql:"type:DATETIME(6)"`
	DateCompleted types.Timestamp  `json:"dateCompleted" sql:"type:DATETIME(6)"`
	DueDate       *types.Timestamp `json:"dueDate" sql:"type:DATETIME(6)"`
}

// PerformerTypeGuest marks a performer row backed by a guest account. It
// never appears in raw performer templates.
const PerformerTypeGuest = "GUEST"

// TaskPerformer is soft-deleted only: an explicit remove flips DirectlyStatus
// to DELETED, a later re-add flips the same row back to CREATED.
type TaskPerformer struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TaskID    types.ID `json:"taskId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Type    string   `json:"type"` // USER, GUEST, GROUP
	UserID  types.ID `json:"userId" sql:"type:BIGINT UNSIGNED"`
	GroupID types.ID `json:"groupId" sql:"type:BIGINT UNSIGNED"`

	DirectlyStatus string `json:"directlyStatus"` // CREATED, DELETED, NO_STATUS

	IsCompleted   bool            `json:"isCompleted"`
	DateCompleted types.Timestamp `json:"dateCompleted" sql:"type:DATETIME(6)"`
	DateCreated   types.Timestamp `json:"dateCreated" sql:"type:DATETIME(6) NOT NULL"`
}

func (p *TaskPerformer) IsActive() bool {
	return p.DirectlyStatus != DirectlyStatusDeleted
}

// field types
const (
	FieldTypeString   = "STRING"
	FieldTypeText     = "TEXT"
	FieldTypeNumber   = "NUMBER"
	FieldTypeDate     = "DATE"
	FieldTypeCheckbox = "CHECKBOX"
	FieldTypeRadio    = "RADIO"
	FieldTypeDropdown = "DROPDOWN"
	FieldTypeUser     = "USER"
)

// FieldValue is an output value of the kickoff form (TaskID = 0) or of a task
// field. It feeds name/description interpolation and condition evaluation.
type FieldValue struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID  types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TaskID     types.ID `json:"taskId" sql:"type:BIGINT UNSIGNED"`

	APIName string `json:"apiName"`
	Type    string `json:"type"`

	Value       string     `json:"value" sql:"type:TEXT"`
	SelectedIDs StringList `json:"selectedIds" sql:"type:TEXT"`
}

// IsEmpty reports whether the field carries no value at all.
func (v *FieldValue) IsEmpty() bool {
	return v.Value == "" && len(v.SelectedIDs) == 0
}
