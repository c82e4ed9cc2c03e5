package progress

import (
	"pneumatic/bizerror"
	"pneumatic/domain"
	"pneumatic/event"
	"pneumatic/idgen"
	"pneumatic/persistence"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	fieldIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	UpdateKickoffFieldsFunc = UpdateKickoffFields
)

type FieldValueUpdating struct {
	APIName     string            `json:"apiName" validate:"required"`
	Type        string            `json:"type"`
	Value       string            `json:"value"`
	SelectedIDs domain.StringList `json:"selectedIds"`
}

// UpdateKickoffFields upserts kickoff field values and recomputes whatever
// depends on the changed fields: performer sets resolved from a field and due
// dates anchored to one. Completed tasks are never re-touched.
func UpdateKickoffFields(workflowID types.ID, updatings []FieldValueUpdating, sec *session.Context) (*domain.Workflow, error) {
	changes := Changes{}
	var workflow *domain.Workflow

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		wf, err := findWorkflow(workflowID, sec, tx)
		if err != nil {
			return err
		}
		if wf.IsTerminal() {
			return bizerror.ErrWorkflowEnded
		}

		var changed []string
		for _, updating := range updatings {
			wasChanged, err := upsertKickoffField(tx, wf, &updating)
			if err != nil {
				return err
			}
			if wasChanged {
				changed = append(changed, updating.APIName)
			}
		}

		if err := handleFieldsUpdate(tx, wf, changed, sec, &changes); err != nil {
			return err
		}
		workflow = wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.Dispatch()
	return workflow, nil
}

func upsertKickoffField(tx *gorm.DB, wf *domain.Workflow, updating *FieldValueUpdating) (bool, error) {
	existing := domain.FieldValue{}
	// task_id must be matched explicitly: a struct query drops the zero value
	// and would hit task-scoped fields of the same api name
	err := tx.Where("workflow_id = ? AND task_id = ? AND api_name = ?", wf.ID, 0, updating.APIName).
		First(&existing).Error

	if gorm.IsRecordNotFoundError(err) {
		record := domain.FieldValue{
			ID:          idgen.NextID(fieldIdWorker),
			AccountID:   wf.AccountID,
			WorkflowID:  wf.ID,
			APIName:     updating.APIName,
			Type:        updating.Type,
			Value:       updating.Value,
			SelectedIDs: updating.SelectedIDs,
		}
		if err := tx.Create(&record).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.Value == updating.Value && sameSelections(existing.SelectedIDs, updating.SelectedIDs) {
		return false, nil
	}
	if err := tx.Model(&domain.FieldValue{}).Where(&domain.FieldValue{ID: existing.ID}).
		Update(map[string]interface{}{"value": updating.Value, "selected_ids": updating.SelectedIDs}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func sameSelections(a, b domain.StringList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// handleFieldsUpdate revisits every incomplete, unskipped task whose raw
// performers or due-date rule reference one of the changed fields.
func handleFieldsUpdate(tx *gorm.DB, wf *domain.Workflow, changed []string, sec *session.Context, changes *Changes) error {
	if len(changed) == 0 {
		return nil
	}
	changedSet := make(map[string]bool, len(changed))
	for _, apiName := range changed {
		changedSet[apiName] = true
	}

	fields, err := loadFieldValues(tx, wf.ID)
	if err != nil {
		return err
	}

	var tasks []domain.Task
	if err := tx.Where("workflow_id = ? AND is_completed = ? AND is_skipped = ?", wf.ID, false, false).
		Order("number ASC").Find(&tasks).Error; err != nil {
		return err
	}

	for i := range tasks {
		task := &tasks[i]

		var raws []domain.RawPerformerTemplate
		if err := tx.Where(&domain.RawPerformerTemplate{TaskTemplateID: task.TaskTemplateID}).
			Find(&raws).Error; err != nil {
			return err
		}
		performersAffected := false
		for _, raw := range raws {
			if raw.Type == domain.PerformerTypeField && changedSet[raw.FieldAPIName] {
				performersAffected = true
				break
			}
		}
		if performersAffected {
			if _, err := syncTaskPerformers(tx, wf, task, fields); err != nil {
				return err
			}
			ev, err := event.CreateEvent(wf, task.ID, event.EventTypePerformersUpdated,
				event.Payload{"taskNumber": task.Number, "changedFields": changed}, &sec.Identity, tx)
			if err != nil {
				return err
			}
			changes.AddEvent(ev)
		}

		template := domain.TaskTemplate{}
		if err := tx.Where(&domain.TaskTemplate{ID: task.TaskTemplateID}).First(&template).Error; err != nil {
			return err
		}
		// a due date exists only once the task has started; completed tasks'
		// due dates are frozen by the is_completed filter above
		if template.DueDateFieldAPIName != "" && changedSet[template.DueDateFieldAPIName] &&
			!task.DateStarted.Time().IsZero() {

			dueDate := computeDueDate(&template, task.DateStarted, fields)
			if err := tx.Model(&domain.Task{}).Where(&domain.Task{ID: task.ID}).
				Update("due_date", dueDate).Error; err != nil {
				return err
			}
			task.DueDate = dueDate

			ev, err := event.CreateEvent(wf, task.ID, event.EventTypeDueDateChanged,
				event.Payload{"taskNumber": task.Number, "dueDate": dueDate}, &sec.Identity, tx)
			if err != nil {
				return err
			}
			changes.AddEvent(ev)
		}
	}
	return nil
}
