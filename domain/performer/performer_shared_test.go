package performer_test

import (
	"context"

	"pneumatic/analytics"
	"pneumatic/domain"
	"pneumatic/domain/progress"
	"pneumatic/event"
	"pneumatic/notify"
	"pneumatic/persistence"
	"pneumatic/session"
	"pneumatic/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

var (
	testDatabase *testinfra.TestDatabase

	sentNotifications []notify.Notification
	trackedEvents     []string
)

func setup() *gorm.DB {
	testDatabase = testinfra.StartTestDatabase("pneumatic")
	db := testDatabase.DS.GormDB(context.Background())
	Expect(db.AutoMigrate(
		&domain.User{}, &domain.Group{},
		&domain.Template{}, &domain.TaskTemplate{}, &domain.RawPerformerTemplate{},
		&domain.ConditionTemplate{}, &domain.RuleTemplate{}, &domain.PredicateTemplate{},
		&domain.Workflow{}, &domain.Task{}, &domain.TaskPerformer{}, &domain.FieldValue{},
		&event.EventRecord{},
	).Error).To(BeNil())
	persistence.ActiveDataSourceManager = testDatabase.DS

	sentNotifications = nil
	trackedEvents = nil
	notify.EnqueueFunc = func(n notify.Notification) {
		sentNotifications = append(sentNotifications, n)
	}
	analytics.TrackFunc = func(eventName string, properties map[string]interface{}, actor *session.Identity) {
		trackedEvents = append(trackedEvents, eventName)
	}
	return db
}

func teardown() {
	notify.EnqueueFunc = notify.Enqueue
	analytics.TrackFunc = analytics.Track
	testinfra.StopTestDatabase(testDatabase)
}

// buildRunningWorkflow seeds a two task workflow on its first task, performed
// by user 102.
func buildRunningWorkflow(db *gorm.DB, accountID types.ID) *domain.Workflow {
	now := types.CurrentTimestamp()

	Expect(db.Create(&domain.User{ID: 101, AccountID: accountID, Email: "owner@a.com", Name: "owner",
		Type: domain.UserTypeUser, Status: domain.UserStatusActive, IsAccountOwner: true, CreateTime: now}).Error).To(BeNil())
	Expect(db.Create(&domain.User{ID: 102, AccountID: accountID, Email: "worker@a.com", Name: "worker",
		Type: domain.UserTypeUser, Status: domain.UserStatusActive, CreateTime: now}).Error).To(BeNil())
	Expect(db.Create(&domain.User{ID: 103, AccountID: accountID, Email: "backup@a.com", Name: "backup",
		Type: domain.UserTypeUser, Status: domain.UserStatusActive, CreateTime: now}).Error).To(BeNil())
	Expect(db.Create(&domain.User{ID: 104, AccountID: accountID, Email: "gone@a.com", Name: "gone",
		Type: domain.UserTypeUser, Status: domain.UserStatusInactive, CreateTime: now}).Error).To(BeNil())

	Expect(db.Create(&domain.Template{ID: 1000, AccountID: accountID, Name: "review flow",
		OwnerIDs: domain.IDList{101}, IsActive: true, TasksCount: 2, CreateTime: now}).Error).To(BeNil())
	Expect(db.Create(&domain.TaskTemplate{ID: 1001, AccountID: accountID, TemplateID: 1000,
		Number: 1, Name: "review"}).Error).To(BeNil())
	Expect(db.Create(&domain.TaskTemplate{ID: 1002, AccountID: accountID, TemplateID: 1000,
		Number: 2, Name: "publish"}).Error).To(BeNil())
	Expect(db.Create(&domain.RawPerformerTemplate{ID: 2001, AccountID: accountID, TemplateID: 1000,
		TaskTemplateID: 1001, Type: domain.PerformerTypeUser, UserID: 102}).Error).To(BeNil())
	Expect(db.Create(&domain.RawPerformerTemplate{ID: 2002, AccountID: accountID, TemplateID: 1000,
		TaskTemplateID: 1002, Type: domain.PerformerTypeWorkflowStarter}).Error).To(BeNil())

	wf := domain.Workflow{ID: 3000, AccountID: accountID, TemplateID: 1000, StarterID: 101,
		Name: "review run", Status: domain.WorkflowStatusRunning, TasksCount: 2, DateCreated: now}
	Expect(db.Create(&wf).Error).To(BeNil())
	Expect(db.Create(&domain.Task{ID: 3001, AccountID: accountID, WorkflowID: wf.ID, TaskTemplateID: 1001,
		Number: 1, Name: "review"}).Error).To(BeNil())
	Expect(db.Create(&domain.Task{ID: 3002, AccountID: accountID, WorkflowID: wf.ID, TaskTemplateID: 1002,
		Number: 2, Name: "publish"}).Error).To(BeNil())

	started, err := progress.StartWorkflow(wf.ID, ownerSecCtx())
	Expect(err).To(BeNil())
	Expect(started.CurrentTask).To(Equal(1))

	sentNotifications = nil
	trackedEvents = nil
	return started
}

func ownerSecCtx() *session.Context {
	sec := testinfra.BuildSecCtx(101, 1, "owner")
	sec.Identity.Name = "owner"
	return sec
}

func activePerformersOf(db *gorm.DB, taskID types.ID) []domain.TaskPerformer {
	var rows []domain.TaskPerformer
	Expect(db.Where("task_id = ? AND directly_status <> ?", taskID, domain.DirectlyStatusDeleted).
		Find(&rows).Error).To(BeNil())
	return rows
}
