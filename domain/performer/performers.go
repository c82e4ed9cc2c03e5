package performer

import (
	"errors"

	"pneumatic/analytics"
	"pneumatic/bizerror"
	"pneumatic/domain"
	"pneumatic/domain/progress"
	"pneumatic/event"
	"pneumatic/idgen"
	"pneumatic/notify"
	"pneumatic/persistence"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	performerIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreatePerformerFunc = CreatePerformer
	DeletePerformerFunc = DeletePerformer
)

// CreatePerformer explicitly assigns a user or group to the workflow's
// current task. Creating the same performer twice is a no-op, re-adding a
// removed one restores the original row.
func CreatePerformer(taskID types.ID, key PerformerKey, sec *session.Context) (*domain.TaskPerformer, error) {
	changes := progress.Changes{}
	var row *domain.TaskPerformer
	var sideEffects bool

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		task, wf, err := progress.FindTaskAndWorkflow(taskID, sec, tx)
		if err != nil {
			return err
		}
		if err := checkPerformerChangeAllowed(tx, wf, task, sec); err != nil {
			return err
		}

		ref := domain.TaskPerformer{TaskID: task.ID}
		if key.IsGroup() {
			group, err := resolveGroup(tx, key, sec.Identity.AccountID)
			if err != nil {
				return err
			}
			ref.Type = domain.PerformerTypeGroup
			ref.GroupID = group.ID
		} else {
			user, err := resolveUserForCreate(tx, key, sec.Identity.AccountID)
			if err != nil {
				return err
			}
			ref.Type = domain.PerformerTypeUser
			ref.UserID = user.ID
		}

		row, sideEffects, err = attachPerformer(tx, wf, task, ref, sec, &changes)
		if err != nil {
			return err
		}
		if sideEffects {
			// group rows fan out to every member, as they do at task start
			recipients, err := progress.ResolveRecipients(tx, []domain.TaskPerformer{*row})
			if err != nil {
				return err
			}
			taskCtx := progress.BuildTaskContext(wf, task, sec)
			for _, recipient := range recipients {
				if recipient.ID == sec.Identity.ID {
					continue
				}
				changes.AddNotification(notify.NewTaskNotification(recipient.ID, recipient.Email, taskCtx))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.Dispatch()
	if sideEffects {
		analytics.TrackFunc(analytics.EventPerformerCreated,
			map[string]interface{}{"taskId": row.TaskID, "performerType": row.Type}, &sec.Identity)
	}
	return row, nil
}

// attachPerformer inserts or restores the assignment row and records the
// in-transaction side effects. The returned flag tells whether anything
// actually changed.
func attachPerformer(tx *gorm.DB, wf *domain.Workflow, task *domain.Task, ref domain.TaskPerformer,
	sec *session.Context, changes *progress.Changes) (*domain.TaskPerformer, bool, error) {

	existing := domain.TaskPerformer{}
	query := tx.Where(&domain.TaskPerformer{TaskID: task.ID, Type: ref.Type})
	if ref.Type == domain.PerformerTypeGroup {
		query = query.Where("group_id = ?", ref.GroupID)
	} else {
		query = query.Where("user_id = ?", ref.UserID)
	}
	err := query.First(&existing).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, false, err
	}

	if err == nil {
		if existing.DirectlyStatus != domain.DirectlyStatusDeleted {
			// already assigned, idempotent
			return &existing, false, nil
		}

		restore := tx.Model(&domain.TaskPerformer{}).
			Where("id = ? AND directly_status = ?", existing.ID, domain.DirectlyStatusDeleted).
			Update("directly_status", domain.DirectlyStatusCreated)
		if err := restore.Error; err != nil {
			return nil, false, err
		}
		if restore.RowsAffected != 1 {
			return nil, false, errors.New("concurrent performer change detected for task " + task.ID.String())
		}
		existing.DirectlyStatus = domain.DirectlyStatusCreated

		if err := recordPerformerCreated(tx, wf, task, &existing, sec, changes); err != nil {
			return nil, false, err
		}
		return &existing, true, nil
	}

	created := ref
	created.ID = idgen.NextID(performerIdWorker)
	created.AccountID = task.AccountID
	created.DirectlyStatus = domain.DirectlyStatusCreated
	created.DateCreated = types.CurrentTimestamp()
	if err := tx.Create(&created).Error; err != nil {
		return nil, false, err
	}

	if err := recordPerformerCreated(tx, wf, task, &created, sec, changes); err != nil {
		return nil, false, err
	}
	return &created, true, nil
}

func recordPerformerCreated(tx *gorm.DB, wf *domain.Workflow, task *domain.Task, row *domain.TaskPerformer,
	sec *session.Context, changes *progress.Changes) error {

	if row.Type != domain.PerformerTypeGroup && !wf.Members.Contains(row.UserID) {
		members := wf.Members.Append(row.UserID)
		if err := tx.Model(&domain.Workflow{}).Where(&domain.Workflow{ID: wf.ID}).
			Update("members", members).Error; err != nil {
			return err
		}
		wf.Members = members
	}

	ev, err := event.CreateEvent(wf, task.ID, event.EventTypePerformerCreated,
		event.Payload{"performerId": row.ID, "performerType": row.Type, "userId": row.UserID, "groupId": row.GroupID},
		&sec.Identity, tx)
	if err != nil {
		return err
	}
	changes.AddEvent(ev)
	return nil
}

// DeletePerformer soft-deletes the assignment. A task keeps at least one
// active performer; when the removed performer was the last outstanding one,
// the task is completed through the progression engine.
func DeletePerformer(taskID types.ID, key PerformerKey, sec *session.Context) error {
	changes := progress.Changes{}
	var sideEffects bool
	var deletedType string

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		task, wf, err := progress.FindTaskAndWorkflow(taskID, sec, tx)
		if err != nil {
			return err
		}
		if err := checkPerformerChangeAllowed(tx, wf, task, sec); err != nil {
			return err
		}

		removingSelf := false
		ref := domain.TaskPerformer{TaskID: task.ID}
		if key.IsGroup() {
			group, err := resolveGroup(tx, key, sec.Identity.AccountID)
			if err != nil {
				return err
			}
			ref.Type = domain.PerformerTypeGroup
			ref.GroupID = group.ID
		} else {
			user, err := resolveUserForDelete(tx, key, sec.Identity.AccountID)
			if err != nil {
				return err
			}
			ref.UserID = user.ID
			removingSelf = user.ID == sec.Identity.ID
		}

		active, err := listActivePerformers(tx, task.ID)
		if err != nil {
			return err
		}
		row := findActiveRow(active, ref)
		if row == nil {
			// not an active performer, nothing to do
			return nil
		}

		if len(active) <= 1 && !(removingSelf && wf.IsLegacy) {
			return bizerror.ErrLastPerformer
		}

		flip := tx.Model(&domain.TaskPerformer{}).
			Where("id = ? AND directly_status <> ?", row.ID, domain.DirectlyStatusDeleted).
			Update("directly_status", domain.DirectlyStatusDeleted)
		if err := flip.Error; err != nil {
			return err
		}
		if flip.RowsAffected != 1 {
			// someone else removed the row meanwhile
			return nil
		}

		// re-read under the write to close the concurrent double-delete race
		remaining, err := listActivePerformers(tx, task.ID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 && !(removingSelf && wf.IsLegacy) {
			return bizerror.ErrLastPerformer
		}

		ev, err := event.CreateEvent(wf, task.ID, event.EventTypePerformerDeleted,
			event.Payload{"performerId": row.ID, "performerType": row.Type, "userId": row.UserID, "groupId": row.GroupID},
			&sec.Identity, tx)
		if err != nil {
			return err
		}
		changes.AddEvent(ev)
		sideEffects = true
		deletedType = row.Type

		recipients, err := progress.ResolveRecipients(tx, []domain.TaskPerformer{*row})
		if err != nil {
			return err
		}
		for _, recipient := range recipients {
			if recipient.ID == sec.Identity.ID {
				continue
			}
			changes.AddNotification(notify.RemovedTaskNotification(recipient.ID, recipient.Email, task.ID))
		}

		if len(remaining) > 0 && !task.IsCompleted && allCompleted(remaining) {
			// the removed performer was the last outstanding one
			return progress.CompleteTaskInTx(tx, wf, task, sec, &changes)
		}
		return nil
	})
	if err != nil {
		return err
	}

	changes.Dispatch()
	if sideEffects {
		analytics.TrackFunc(analytics.EventPerformerDeleted,
			map[string]interface{}{"taskId": taskID, "performerType": deletedType}, &sec.Identity)
	}
	return nil
}

// checkPerformerChangeAllowed holds the preconditions shared by create and
// delete: no changes on ended workflows or on past/future tasks, and only for
// the account owner, an admin, a template owner or a current performer.
func checkPerformerChangeAllowed(tx *gorm.DB, wf *domain.Workflow, task *domain.Task, sec *session.Context) error {
	if wf.IsTerminal() {
		return bizerror.ErrWorkflowEnded
	}
	if task.Number != wf.CurrentTask {
		return bizerror.ErrTaskNotCurrent
	}

	if sec.Identity.IsAccountOwner || sec.Identity.IsAdmin {
		return nil
	}

	template := domain.Template{}
	err := tx.Where(&domain.Template{ID: wf.TemplateID}).First(&template).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	if err == nil && sec.CanManagePerformers(&template) {
		return nil
	}

	if _, err := progress.FindPerformerOfIdentity(tx, task.ID, &sec.Identity); err != nil {
		if errors.Is(err, bizerror.ErrNotTaskPerformer) {
			return bizerror.ErrForbidden
		}
		return err
	}
	return nil
}

// listActivePerformers reads the task's non-deleted rows, taking a row lock
// on MySQL so two concurrent deletes can not both pass the last-performer
// check.
func listActivePerformers(tx *gorm.DB, taskID types.ID) ([]domain.TaskPerformer, error) {
	query := tx.Where("task_id = ? AND directly_status <> ?", taskID, domain.DirectlyStatusDeleted)
	if persistence.ActiveDataSourceManager.SupportsRowLocking() {
		query = query.Set("gorm:query_option", "FOR UPDATE")
	}
	var rows []domain.TaskPerformer
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func findActiveRow(rows []domain.TaskPerformer, ref domain.TaskPerformer) *domain.TaskPerformer {
	for i := range rows {
		row := &rows[i]
		if ref.Type == domain.PerformerTypeGroup {
			if row.Type == domain.PerformerTypeGroup && row.GroupID == ref.GroupID {
				return row
			}
			continue
		}
		if row.Type != domain.PerformerTypeGroup && row.UserID == ref.UserID {
			return row
		}
	}
	return nil
}

func allCompleted(rows []domain.TaskPerformer) bool {
	for _, row := range rows {
		if !row.IsCompleted {
			return false
		}
	}
	return true
}
