package domain

import (
	"github.com/fundwit/go-commons/types"
)

// performer template types
const (
	PerformerTypeUser            = "USER"
	PerformerTypeGroup           = "GROUP"
	PerformerTypeField           = "FIELD"
	PerformerTypeWorkflowStarter = "WORKFLOW_STARTER"
)

type Template struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Name     string `json:"name"`
	OwnerIDs IDList `json:"ownerIds" sql:"type:TEXT"`
	IsActive bool   `json:"isActive"`

	TasksCount int `json:"tasksCount"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type TaskTemplate struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID  types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateID types.ID `json:"templateId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Number      int    `json:"number"`
	Name        string `json:"name"`
	Description string `json:"description" sql:"type:TEXT"`

	RequireCompletionByAll bool `json:"requireCompletionByAll"`

	// due date rule: DueInSeconds after the task start, or after the value of
	// the referenced DATE field when DueDateFieldAPIName is set
	DueInSeconds        int64  `json:"dueInSeconds"`
	DueDateFieldAPIName string `json:"dueDateFieldApiName"`
}

// RawPerformerTemplate is a template-time definition of who should perform a
// task: a fixed user, a group, the workflow starter, or the user referenced
// by a kickoff/task field value.
type RawPerformerTemplate struct {
	ID             types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID      types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateID     types.ID `json:"templateId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TaskTemplateID types.ID `json:"taskTemplateId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Type string `json:"type"` // USER, GROUP, FIELD, WORKFLOW_STARTER

	UserID       types.ID `json:"userId" sql:"type:BIGINT UNSIGNED"`
	GroupID      types.ID `json:"groupId" sql:"type:BIGINT UNSIGNED"`
	FieldAPIName string   `json:"fieldApiName"`
}
