package progress

import (
	"strconv"
	"strings"

	"pneumatic/domain"
	"pneumatic/idgen"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var performerIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

type performerRef struct {
	Type    string
	UserID  types.ID
	GroupID types.ID
}

// syncTaskPerformers reconciles a task's performer rows with the resolution
// of its raw performer templates. It is idempotent: reapplying the same field
// values creates no duplicate rows and leaves completed or explicitly toggled
// rows alone.
func syncTaskPerformers(tx *gorm.DB, wf *domain.Workflow, task *domain.Task,
	fields map[string]domain.FieldValue) ([]domain.TaskPerformer, error) {

	desired, err := resolveRawPerformers(tx, wf, task, fields)
	if err != nil {
		return nil, err
	}

	var existing []domain.TaskPerformer
	if err := tx.Where(&domain.TaskPerformer{TaskID: task.ID}).Find(&existing).Error; err != nil {
		return nil, err
	}

	matched := make(map[types.ID]bool, len(existing))
	now := types.CurrentTimestamp()
	for _, ref := range desired {
		row := findPerformerRow(existing, ref)
		if row != nil {
			// an explicitly deleted row is not resurrected by re-resolution
			matched[row.ID] = true
			continue
		}
		created := domain.TaskPerformer{
			ID:             idgen.NextID(performerIdWorker),
			AccountID:      task.AccountID,
			TaskID:         task.ID,
			Type:           ref.Type,
			UserID:         ref.UserID,
			GroupID:        ref.GroupID,
			DirectlyStatus: domain.DirectlyStatusNoStatus,
			DateCreated:    now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return nil, err
		}
		existing = append(existing, created)
		matched[created.ID] = true
	}

	// template-derived rows whose resolution no longer matches are removed;
	// explicitly created rows stay until a user removes them
	for i := range existing {
		row := &existing[i]
		if matched[row.ID] || row.DirectlyStatus != domain.DirectlyStatusNoStatus {
			continue
		}
		if err := tx.Model(&domain.TaskPerformer{}).Where(&domain.TaskPerformer{ID: row.ID}).
			Update("directly_status", domain.DirectlyStatusDeleted).Error; err != nil {
			return nil, err
		}
		row.DirectlyStatus = domain.DirectlyStatusDeleted
	}

	var active []domain.TaskPerformer
	members := wf.Members
	for _, row := range existing {
		if !row.IsActive() {
			continue
		}
		active = append(active, row)
		if row.Type != domain.PerformerTypeGroup {
			members = members.Append(row.UserID)
		}
	}
	if len(members) != len(wf.Members) {
		if err := tx.Model(&domain.Workflow{}).Where(&domain.Workflow{ID: wf.ID}).
			Update("members", members).Error; err != nil {
			return nil, err
		}
		wf.Members = members
	}
	return active, nil
}

func resolveRawPerformers(tx *gorm.DB, wf *domain.Workflow, task *domain.Task,
	fields map[string]domain.FieldValue) ([]performerRef, error) {

	var raws []domain.RawPerformerTemplate
	if err := tx.Where(&domain.RawPerformerTemplate{TaskTemplateID: task.TaskTemplateID}).
		Order("id ASC").Find(&raws).Error; err != nil {
		return nil, err
	}

	var refs []performerRef
	for _, raw := range raws {
		switch raw.Type {
		case domain.PerformerTypeUser:
			user, err := findAccountUser(tx, task.AccountID, raw.UserID)
			if err != nil {
				return nil, err
			}
			if user == nil {
				continue
			}
			refs = append(refs, performerRef{Type: performerRowType(user), UserID: user.ID})

		case domain.PerformerTypeGroup:
			group := domain.Group{}
			err := tx.Where(&domain.Group{ID: raw.GroupID, AccountID: task.AccountID}).First(&group).Error
			if gorm.IsRecordNotFoundError(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			refs = append(refs, performerRef{Type: domain.PerformerTypeGroup, GroupID: group.ID})

		case domain.PerformerTypeWorkflowStarter:
			if wf.StarterID == 0 {
				continue
			}
			refs = append(refs, performerRef{Type: domain.PerformerTypeUser, UserID: wf.StarterID})

		case domain.PerformerTypeField:
			userID, ok := resolveUserField(fields, raw.FieldAPIName)
			if !ok {
				continue
			}
			user, err := findAccountUser(tx, task.AccountID, userID)
			if err != nil {
				return nil, err
			}
			if user == nil {
				continue
			}
			refs = append(refs, performerRef{Type: performerRowType(user), UserID: user.ID})
		}
	}
	return refs, nil
}

// resolveUserField reads a USER field value. A deleted or empty field simply
// resolves to nothing.
func resolveUserField(fields map[string]domain.FieldValue, apiName string) (types.ID, bool) {
	field, found := fields[apiName]
	if !found || field.Type != domain.FieldTypeUser {
		return 0, false
	}
	raw := field.Value
	if raw == "" && len(field.SelectedIDs) > 0 {
		raw = field.SelectedIDs[0]
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return types.ID(id), true
}

func findAccountUser(tx *gorm.DB, accountID, userID types.ID) (*domain.User, error) {
	user := domain.User{}
	err := tx.Where(&domain.User{ID: userID, AccountID: accountID, Status: domain.UserStatusActive}).First(&user).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func performerRowType(user *domain.User) string {
	if user.Type == domain.UserTypeGuest {
		return domain.PerformerTypeGuest
	}
	return domain.PerformerTypeUser
}

func findPerformerRow(rows []domain.TaskPerformer, ref performerRef) *domain.TaskPerformer {
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

// ResolveRecipients expands performer rows into notifiable users, groups
// included.
func ResolveRecipients(tx *gorm.DB, performers []domain.TaskPerformer) ([]domain.User, error) {
	seen := map[types.ID]bool{}
	var recipients []domain.User

	appendUser := func(userID types.ID) error {
		if seen[userID] {
			return nil
		}
		user := domain.User{}
		err := tx.Where(&domain.User{ID: userID}).First(&user).Error
		if gorm.IsRecordNotFoundError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		seen[userID] = true
		recipients = append(recipients, user)
		return nil
	}

	for _, row := range performers {
		if row.Type == domain.PerformerTypeGroup {
			group := domain.Group{}
			err := tx.Where(&domain.Group{ID: row.GroupID}).First(&group).Error
			if gorm.IsRecordNotFoundError(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			for _, member := range group.UserIDs {
				if err := appendUser(member); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := appendUser(row.UserID); err != nil {
			return nil, err
		}
	}
	return recipients, nil
}

// interpolate replaces {{api_name}} references with the current field value.
func interpolate(text string, fields map[string]domain.FieldValue) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	for apiName, field := range fields {
		value := field.Value
		if value == "" && len(field.SelectedIDs) > 0 {
			value = strings.Join(field.SelectedIDs, ", ")
		}
		text = strings.ReplaceAll(text, "{{"+apiName+"}}", value)
	}
	return text
}
