package performer

import (
	"errors"
	"strings"

	"pneumatic/analytics"
	"pneumatic/bizerror"
	"pneumatic/domain"
	"pneumatic/domain/progress"
	"pneumatic/idgen"
	"pneumatic/notify"
	"pneumatic/persistence"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

// MaxGuestPerformers caps how many guests a single task may carry.
const MaxGuestPerformers = 30

var (
	guestIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateGuestPerformerFunc = CreateGuestPerformer
	DeleteGuestPerformerFunc = DeleteGuestPerformer
)

// GuestInvitation is what the caller sends to the invited address: the
// performer row plus a token scoped to the guest identity.
type GuestInvitation struct {
	Performer domain.TaskPerformer `json:"performer"`
	Guest     domain.User          `json:"guest"`
	Token     string               `json:"token"`
}

// CreateGuestPerformer invites an external email to the workflow's current
// task. The guest account is created on first invite and reused afterwards.
// Inviting an already assigned guest reissues the access token.
func CreateGuestPerformer(taskID types.ID, email string, sec *session.Context) (*GuestInvitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("email is required")}
	}

	changes := progress.Changes{}
	var invitation *GuestInvitation
	var guestCreated, performerAttached bool

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		task, wf, err := progress.FindTaskAndWorkflow(taskID, sec, tx)
		if err != nil {
			return err
		}
		if err := checkPerformerChangeAllowed(tx, wf, task, sec); err != nil {
			return err
		}

		guest, created, err := findOrCreateGuest(tx, email, sec.Identity.AccountID)
		if err != nil {
			return err
		}
		guestCreated = created

		row, err := attachGuest(tx, wf, task, guest, sec, &changes)
		if err != nil {
			return err
		}
		performerAttached = row != nil
		if performerAttached {
			changes.AddNotification(notify.NewTaskNotification(guest.ID, guest.Email,
				progress.BuildTaskContext(wf, task, sec)))
		}

		if !performerAttached {
			existing := domain.TaskPerformer{}
			if err := tx.Where("task_id = ? AND user_id = ? AND directly_status <> ?",
				task.ID, guest.ID, domain.DirectlyStatusDeleted).First(&existing).Error; err != nil {
				return err
			}
			row = &existing
		}

		invitation = &GuestInvitation{Performer: *row, Guest: *guest}
		return nil
	})
	if err != nil {
		return nil, err
	}

	guestCtx := session.Context{Identity: session.Identity{
		ID:        invitation.Guest.ID,
		AccountID: invitation.Guest.AccountID,
		Name:      invitation.Guest.Name,
		Email:     invitation.Guest.Email,
		Type:      domain.UserTypeGuest,
	}}
	invitation.Token = session.IssueToken(&guestCtx)
	session.ActivateTaskGuestCache(taskID, invitation.Guest.ID)

	changes.Dispatch()
	analytics.TrackFunc(analytics.EventGuestInviteSent,
		map[string]interface{}{"taskId": taskID, "guestEmail": invitation.Guest.Email}, &sec.Identity)
	if guestCreated {
		analytics.TrackFunc(analytics.EventGuestInvited,
			map[string]interface{}{"taskId": taskID, "guestId": invitation.Guest.ID}, &sec.Identity)
	}
	return invitation, nil
}

// attachGuest attaches the guest under the per-task cap. It returns nil when
// the guest is already an active performer.
func attachGuest(tx *gorm.DB, wf *domain.Workflow, task *domain.Task, guest *domain.User,
	sec *session.Context, changes *progress.Changes) (*domain.TaskPerformer, error) {

	existing := domain.TaskPerformer{}
	err := tx.Where("task_id = ? AND user_id = ?", task.ID, guest.ID).First(&existing).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	if err == nil && existing.DirectlyStatus != domain.DirectlyStatusDeleted {
		return nil, nil
	}

	// read the guest rows under a row lock on MySQL so two concurrent invites
	// can not both pass the cap check
	query := tx.Where("task_id = ? AND type = ? AND directly_status <> ?",
		task.ID, domain.PerformerTypeGuest, domain.DirectlyStatusDeleted)
	if persistence.ActiveDataSourceManager.SupportsRowLocking() {
		query = query.Set("gorm:query_option", "FOR UPDATE")
	}
	var guests []domain.TaskPerformer
	if err := query.Find(&guests).Error; err != nil {
		return nil, err
	}
	if len(guests) >= MaxGuestPerformers {
		return nil, bizerror.ErrGuestLimitReached
	}

	ref := domain.TaskPerformer{TaskID: task.ID, Type: domain.PerformerTypeGuest, UserID: guest.ID}
	row, _, err := attachPerformer(tx, wf, task, ref, sec, changes)
	return row, err
}

// DeleteGuestPerformer revokes the guest's assignment and access grant.
// Unknown emails are a no-op.
func DeleteGuestPerformer(taskID types.ID, email string, sec *session.Context) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return &bizerror.ErrBadParam{Cause: errors.New("email is required")}
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	guest := domain.User{}
	err := db.Where(&domain.User{AccountID: sec.Identity.AccountID, Type: domain.UserTypeGuest}).
		Where("email = ?", email).First(&guest).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := DeletePerformerFunc(taskID, ByID(guest.ID), sec); err != nil {
		return err
	}
	session.DeactivateTaskGuestCache(taskID, guest.ID)
	return nil
}

func findOrCreateGuest(tx *gorm.DB, email string, accountID types.ID) (*domain.User, bool, error) {
	guest := domain.User{}
	err := tx.Where(&domain.User{AccountID: accountID}).Where("email = ?", email).First(&guest).Error
	if err == nil {
		if guest.Type != domain.UserTypeGuest {
			// the address belongs to a regular account member
			return nil, false, bizerror.ErrPerformerNotEligible
		}
		return &guest, false, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return nil, false, err
	}

	guest = domain.User{
		ID:         idgen.NextID(guestIdWorker),
		AccountID:  accountID,
		Email:      email,
		Name:       email[:strings.Index(email+"@", "@")],
		Type:       domain.UserTypeGuest,
		Status:     domain.UserStatusActive,
		CreateTime: types.CurrentTimestamp(),
	}
	if err := tx.Create(&guest).Error; err != nil {
		return nil, false, err
	}
	return &guest, true, nil
}
