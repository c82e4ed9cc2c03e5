package notify

import (
	"github.com/fundwit/go-commons/types"
)

const (
	TypeNewTask     = "new_task"
	TypeRemovedTask = "removed_task"
)

// TaskContext is what a recipient needs to act on a new task without another
// round trip: the external/legacy flags shape the guest-facing rendering.
type TaskContext struct {
	TaskID   types.ID `json:"taskId"`
	TaskName string   `json:"taskName"`

	Description string           `json:"description"`
	DueDate     *types.Timestamp `json:"dueDate,omitempty"`

	WorkflowName   string `json:"workflowName"`
	RequesterName  string `json:"requesterName"`
	RequesterPhoto string `json:"requesterPhoto"`
	Logo           string `json:"logo"`

	IsExternal bool `json:"isExternal"`
	IsLegacy   bool `json:"isLegacy"`
}

type Notification struct {
	Type string `json:"type"`

	RecipientID    types.ID `json:"recipientId"`
	RecipientEmail string   `json:"recipientEmail"`

	TaskID types.ID     `json:"taskId"`
	Task   *TaskContext `json:"task,omitempty"`
}

func NewTaskNotification(recipientID types.ID, recipientEmail string, task TaskContext) Notification {
	return Notification{Type: TypeNewTask, RecipientID: recipientID, RecipientEmail: recipientEmail, TaskID: task.TaskID, Task: &task}
}

func RemovedTaskNotification(recipientID types.ID, recipientEmail string, taskID types.ID) Notification {
	return Notification{Type: TypeRemovedTask, RecipientID: recipientID, RecipientEmail: recipientEmail, TaskID: taskID}
}
