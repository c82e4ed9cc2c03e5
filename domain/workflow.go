package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	WorkflowStatusRunning    = "RUNNING"
	WorkflowStatusDone       = "DONE"
	WorkflowStatusTerminated = "TERMINATED"
	WorkflowStatusDelayed    = "DELAYED"
)

type Workflow struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID  types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateID types.ID `json:"templateId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	StarterID  types.ID `json:"starterId" sql:"type:BIGINT UNSIGNED"`

	Name   string `json:"name"`
	Status string `json:"status"` // RUNNING, DONE, TERMINATED, DELAYED

	// CurrentTask is a task number, never a row reference. It is recomputed on
	// every advance so a stale pointer can not survive a skipped or re-entered
	// task.
	CurrentTask int `json:"currentTask"`
	TasksCount  int `json:"tasksCount"`

	IsExternal bool `json:"isExternal"`
	IsLegacy   bool `json:"isLegacy"`

	// Logo is the account branding snapshot shown in guest-facing
	// notifications
	Logo string `json:"logo"`

	Members IDList `json:"members" sql:"type:TEXT"`

	// FinalizedBy holds the condition id when the workflow was ended by a
	// condition, otherwise 0
	FinalizedBy types.ID `json:"finalizedBy" sql:"type:BIGINT UNSIGNED"`

	DateCreated   types.Timestamp `json:"dateCreated" sql:"type:DATETIME(6) NOT NULL"`
	DateCompleted types.Timestamp `json:"dateCompleted" sql:"type:DATETIME(6)"`
}

func (w *Workflow) IsTerminal() bool {
	return w.Status == WorkflowStatusDone || w.Status == WorkflowStatusTerminated
}
