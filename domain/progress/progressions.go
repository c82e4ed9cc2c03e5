package progress

import (
	"errors"
	"strconv"
	"time"

	"pneumatic/analytics"
	"pneumatic/bizerror"
	"pneumatic/domain"
	"pneumatic/domain/condition"
	"pneumatic/event"
	"pneumatic/notify"
	"pneumatic/persistence"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	StartWorkflowFunc            = StartWorkflow
	ResumeWorkflowFunc           = ResumeWorkflow
	CompleteTaskForPerformerFunc = CompleteTaskForPerformer
)

// FindTaskAndWorkflow loads a task with its workflow, scoped to the caller's
// account. A task of another account is reported as not found.
func FindTaskAndWorkflow(taskID types.ID, sec *session.Context, tx *gorm.DB) (*domain.Task, *domain.Workflow, error) {
	task := domain.Task{}
	if err := tx.Where(&domain.Task{ID: taskID}).First(&task).Error; err != nil {
		return nil, nil, err
	}
	if task.AccountID != sec.Identity.AccountID {
		return nil, nil, domain.ErrNotFound
	}
	workflow := domain.Workflow{}
	if err := tx.Where(&domain.Workflow{ID: task.WorkflowID}).First(&workflow).Error; err != nil {
		return nil, nil, err
	}
	return &task, &workflow, nil
}

func findWorkflow(workflowID types.ID, sec *session.Context, tx *gorm.DB) (*domain.Workflow, error) {
	workflow := domain.Workflow{}
	if err := tx.Where(&domain.Workflow{ID: workflowID}).First(&workflow).Error; err != nil {
		return nil, err
	}
	if workflow.AccountID != sec.Identity.AccountID {
		return nil, domain.ErrNotFound
	}
	return &workflow, nil
}

// StartWorkflow moves a freshly created workflow onto its first runnable
// task, honoring skip/end conditions along the way.
func StartWorkflow(workflowID types.ID, sec *session.Context) (*domain.Workflow, error) {
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
		if wf.CurrentTask != 0 {
			return bizerror.ErrWorkflowAlreadyStarted
		}

		ev, err := event.CreateEvent(wf, 0, event.EventTypeWorkflowStart, nil, &sec.Identity, tx)
		if err != nil {
			return err
		}
		changes.AddEvent(ev)

		if err := enterTask(tx, wf, 1, sec, &changes); err != nil {
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

// ResumeWorkflow re-evaluates the current task's conditions from scratch:
// field values may have changed since the task was first entered.
func ResumeWorkflow(workflowID types.ID, sec *session.Context) (*domain.Workflow, error) {
	changes := Changes{}
	var workflow *domain.Workflow

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		wf, err := findWorkflow(workflowID, sec, tx)
		if err != nil {
			return err
		}
		if wf.IsTerminal() {
			return bizerror.ErrWorkflowNotResumable
		}
		if wf.Status != domain.WorkflowStatusRunning {
			if err := tx.Model(&domain.Workflow{}).Where(&domain.Workflow{ID: wf.ID}).
				Update("status", domain.WorkflowStatusRunning).Error; err != nil {
				return err
			}
			wf.Status = domain.WorkflowStatusRunning
		}

		ev, err := event.CreateEvent(wf, 0, event.EventTypeWorkflowResume, nil, &sec.Identity, tx)
		if err != nil {
			return err
		}
		changes.AddEvent(ev)

		number := wf.CurrentTask
		if number == 0 {
			number = 1
		}
		if err := enterTask(tx, wf, number, sec, &changes); err != nil {
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

// CompleteTaskForPerformer marks the calling performer's assignment as done.
// The task itself completes when completion by all is not required, or when
// no active performer remains outstanding.
func CompleteTaskForPerformer(taskID types.ID, sec *session.Context) (*domain.Task, error) {
	// a guest token only opens the tasks it was granted for
	if sec.IsGuest() && !session.HasTaskGuestGrant(taskID, sec.Identity.ID) {
		return nil, bizerror.ErrForbidden
	}

	changes := Changes{}
	var result *domain.Task

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		task, wf, err := FindTaskAndWorkflow(taskID, sec, tx)
		if err != nil {
			return err
		}
		if wf.IsTerminal() {
			return bizerror.ErrWorkflowEnded
		}
		if task.Number != wf.CurrentTask {
			return bizerror.ErrTaskNotCurrent
		}
		if task.IsCompleted {
			return bizerror.ErrTaskAlreadyCompleted
		}

		performerRow, err := FindPerformerOfIdentity(tx, task.ID, &sec.Identity)
		if err != nil {
			return err
		}

		if !performerRow.IsCompleted {
			now := types.CurrentTimestamp()
			query := tx.Model(&domain.TaskPerformer{}).
				Where("id = ? AND is_completed = ? AND directly_status <> ?", performerRow.ID, false, domain.DirectlyStatusDeleted).
				Update(map[string]interface{}{"is_completed": true, "date_completed": now})
			if err := query.Error; err != nil {
				return err
			}
			if query.RowsAffected != 1 {
				return errors.New("expected affected row is 1, but actual is " + strconv.FormatInt(query.RowsAffected, 10))
			}
		}

		if task.RequireCompletionByAll {
			var outstanding int
			if err := tx.Model(&domain.TaskPerformer{}).
				Where("task_id = ? AND directly_status <> ? AND is_completed = ?", task.ID, domain.DirectlyStatusDeleted, false).
				Count(&outstanding).Error; err != nil {
				return err
			}
			if outstanding > 0 {
				result = task
				return nil
			}
		}

		if err := CompleteTaskInTx(tx, wf, task, sec, &changes); err != nil {
			return err
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.Dispatch()
	analytics.TrackFunc(analytics.EventTaskCompleted,
		map[string]interface{}{"taskId": result.ID, "workflowId": result.WorkflowID, "completed": result.IsCompleted},
		&sec.Identity)
	return result, nil
}

// CompleteTaskInTx completes a task inside the caller's transaction and
// advances the workflow. Performer removal reuses it when the last
// outstanding performer disappears.
func CompleteTaskInTx(tx *gorm.DB, wf *domain.Workflow, task *domain.Task, sec *session.Context, changes *Changes) error {
	now := types.CurrentTimestamp()

	query := tx.Model(&domain.Task{}).Where("id = ? AND is_completed = ?", task.ID, false).
		Update(map[string]interface{}{"is_completed": true, "date_completed": now})
	if err := query.Error; err != nil {
		return err
	}
	if query.RowsAffected != 1 {
		return bizerror.ErrTaskAlreadyCompleted
	}
	task.IsCompleted = true
	task.DateCompleted = now

	ev, err := event.CreateEvent(wf, task.ID, event.EventTypeTaskComplete,
		event.Payload{"taskNumber": task.Number}, &sec.Identity, tx)
	if err != nil {
		return err
	}
	changes.AddEvent(ev)

	if task.Number >= wf.TasksCount {
		return finishWorkflow(tx, wf, sec, changes)
	}
	return enterTask(tx, wf, task.Number+1, sec, changes)
}

// enterTask walks forward from the given task number until a task survives
// condition evaluation, the workflow is ended by a condition, or tasks are
// exhausted.
func enterTask(tx *gorm.DB, wf *domain.Workflow, number int, sec *session.Context, changes *Changes) error {
	for n := number; ; n++ {
		if n > wf.TasksCount {
			return finishWorkflow(tx, wf, sec, changes)
		}

		task := domain.Task{}
		if err := tx.Where(&domain.Task{WorkflowID: wf.ID, Number: n}).First(&task).Error; err != nil {
			return err
		}

		conditions, err := condition.LoadTaskConditionsFunc(task.TaskTemplateID, tx)
		if err != nil {
			return err
		}
		fields, err := loadFieldValues(tx, wf.ID)
		if err != nil {
			return err
		}

		outcome := condition.Evaluate(conditions, fields)
		switch outcome.Decision {
		case condition.DecisionSkipTask:
			if err := tx.Model(&domain.Task{}).Where(&domain.Task{ID: task.ID}).
				Update("is_skipped", true).Error; err != nil {
				return err
			}
			ev, err := event.CreateEvent(wf, task.ID, event.EventTypeTaskSkip,
				event.Payload{"taskNumber": task.Number, "conditionId": outcome.ConditionID}, &sec.Identity, tx)
			if err != nil {
				return err
			}
			changes.AddEvent(ev)
			continue

		case condition.DecisionEndWorkflow:
			return endWorkflowByCondition(tx, wf, &task, outcome.ConditionID, sec, changes)

		default:
			return activateTask(tx, wf, &task, fields, sec, changes)
		}
	}
}

func activateTask(tx *gorm.DB, wf *domain.Workflow, task *domain.Task, fields map[string]domain.FieldValue,
	sec *session.Context, changes *Changes) error {

	if task.Number != wf.CurrentTask {
		// optimistic guard against two requests progressing the same workflow
		query := tx.Model(&domain.Workflow{}).Where("id = ? AND current_task = ?", wf.ID, wf.CurrentTask).
			Update("current_task", task.Number)
		if err := query.Error; err != nil {
			return err
		}
		if query.RowsAffected != 1 {
			return errors.New("concurrent workflow progression detected for workflow " + wf.ID.String())
		}
		wf.CurrentTask = task.Number
	}

	template := domain.TaskTemplate{}
	if err := tx.Where(&domain.TaskTemplate{ID: task.TaskTemplateID}).First(&template).Error; err != nil {
		return err
	}

	now := types.CurrentTimestamp()
	if task.DateStarted.Time().IsZero() {
		task.DateStarted = now
	}
	task.Name = interpolate(template.Name, fields)
	task.Description = interpolate(template.Description, fields)
	task.DueDate = computeDueDate(&template, task.DateStarted, fields)

	if err := tx.Model(&domain.Task{}).Where(&domain.Task{ID: task.ID}).
		Update(map[string]interface{}{
			"name": task.Name, "description": task.Description,
			"date_started": task.DateStarted, "due_date": task.DueDate,
		}).Error; err != nil {
		return err
	}

	performers, err := syncTaskPerformers(tx, wf, task, fields)
	if err != nil {
		return err
	}

	ev, err := event.CreateEvent(wf, task.ID, event.EventTypeTaskStart,
		event.Payload{"taskNumber": task.Number, "taskName": task.Name}, &sec.Identity, tx)
	if err != nil {
		return err
	}
	changes.AddEvent(ev)

	recipients, err := ResolveRecipients(tx, performers)
	if err != nil {
		return err
	}
	taskCtx := BuildTaskContext(wf, task, sec)
	for _, recipient := range recipients {
		if recipient.ID == sec.Identity.ID {
			continue
		}
		changes.AddNotification(notify.NewTaskNotification(recipient.ID, recipient.Email, taskCtx))
	}
	return nil
}

func finishWorkflow(tx *gorm.DB, wf *domain.Workflow, sec *session.Context, changes *Changes) error {
	now := types.CurrentTimestamp()
	if err := tx.Model(&domain.Workflow{}).Where(&domain.Workflow{ID: wf.ID}).
		Update(map[string]interface{}{"status": domain.WorkflowStatusDone, "date_completed": now}).Error; err != nil {
		return err
	}
	wf.Status = domain.WorkflowStatusDone
	wf.DateCompleted = now

	ev, err := event.CreateEvent(wf, 0, event.EventTypeWorkflowComplete, nil, &sec.Identity, tx)
	if err != nil {
		return err
	}
	changes.AddEvent(ev)
	return nil
}

func endWorkflowByCondition(tx *gorm.DB, wf *domain.Workflow, task *domain.Task, conditionID types.ID,
	sec *session.Context, changes *Changes) error {

	now := types.CurrentTimestamp()
	if err := tx.Model(&domain.Workflow{}).Where(&domain.Workflow{ID: wf.ID}).
		Update(map[string]interface{}{
			"status": domain.WorkflowStatusDone, "date_completed": now, "finalized_by": conditionID,
		}).Error; err != nil {
		return err
	}
	wf.Status = domain.WorkflowStatusDone
	wf.DateCompleted = now
	wf.FinalizedBy = conditionID

	ev, err := event.CreateEvent(wf, task.ID, event.EventTypeWorkflowEndedByCondition,
		event.Payload{"taskNumber": task.Number, "conditionId": conditionID}, &sec.Identity, tx)
	if err != nil {
		return err
	}
	changes.AddEvent(ev)
	return nil
}

func FindPerformerOfIdentity(tx *gorm.DB, taskID types.ID, identity *session.Identity) (*domain.TaskPerformer, error) {
	var rows []domain.TaskPerformer
	if err := tx.Where("task_id = ? AND directly_status <> ?", taskID, domain.DirectlyStatusDeleted).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	var groupRows []domain.TaskPerformer
	for i := range rows {
		row := &rows[i]
		if row.Type == domain.PerformerTypeGroup {
			groupRows = append(groupRows, *row)
			continue
		}
		if row.UserID == identity.ID {
			return row, nil
		}
	}
	for i := range groupRows {
		row := &groupRows[i]
		group := domain.Group{}
		if err := tx.Where(&domain.Group{ID: row.GroupID}).First(&group).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				continue
			}
			return nil, err
		}
		if group.UserIDs.Contains(identity.ID) {
			return row, nil
		}
	}
	return nil, bizerror.ErrNotTaskPerformer
}

func loadFieldValues(tx *gorm.DB, workflowID types.ID) (map[string]domain.FieldValue, error) {
	var values []domain.FieldValue
	if err := tx.Where(&domain.FieldValue{WorkflowID: workflowID}).Find(&values).Error; err != nil {
		return nil, err
	}
	fields := make(map[string]domain.FieldValue, len(values))
	for _, v := range values {
		fields[v.APIName] = v
	}
	return fields, nil
}

// computeDueDate applies the template's due rule: an offset after the task
// start, or after the referenced DATE field's value. An unresolvable field
// reference yields no due date.
func computeDueDate(template *domain.TaskTemplate, started types.Timestamp, fields map[string]domain.FieldValue) *types.Timestamp {
	if template.DueDateFieldAPIName != "" {
		field, found := fields[template.DueDateFieldAPIName]
		if !found || field.Type != domain.FieldTypeDate {
			return nil
		}
		base, err := strconv.ParseInt(field.Value, 10, 64)
		if err != nil {
			return nil
		}
		due := types.Timestamp(time.Unix(base, 0).Add(time.Duration(template.DueInSeconds) * time.Second))
		return &due
	}
	if template.DueInSeconds > 0 {
		due := types.Timestamp(started.Time().Add(time.Duration(template.DueInSeconds) * time.Second))
		return &due
	}
	return nil
}

func BuildTaskContext(wf *domain.Workflow, task *domain.Task, sec *session.Context) notify.TaskContext {
	return notify.TaskContext{
		TaskID:      task.ID,
		TaskName:    task.Name,
		Description: task.Description,
		DueDate:     task.DueDate,

		WorkflowName:   wf.Name,
		RequesterName:  sec.Identity.Name,
		RequesterPhoto: sec.Identity.Photo,
		Logo:           wf.Logo,

		IsExternal: wf.IsExternal,
		IsLegacy:   wf.IsLegacy,
	}
}
