package progress_test

import (
	"context"

	"pneumatic/analytics"
	"pneumatic/domain"
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

// buildThreeTaskWorkflow seeds a template with three tasks. Task 1 is assigned
// to user 102, task 2 to the workflow starter, task 3 to the user selected in
// the "assignee" kickoff field.
func buildThreeTaskWorkflow(db *gorm.DB, accountID types.ID) *domain.Workflow {
	now := types.CurrentTimestamp()

	Expect(db.Create(&domain.User{ID: 101, AccountID: accountID, Email: "starter@a.com", Name: "starter",
		Type: domain.UserTypeUser, Status: domain.UserStatusActive, IsAccountOwner: true, CreateTime: now}).Error).To(BeNil())
	Expect(db.Create(&domain.User{ID: 102, AccountID: accountID, Email: "worker@a.com", Name: "worker",
		Type: domain.UserTypeUser, Status: domain.UserStatusActive, CreateTime: now}).Error).To(BeNil())
	Expect(db.Create(&domain.User{ID: 103, AccountID: accountID, Email: "backup@a.com", Name: "backup",
		Type: domain.UserTypeUser, Status: domain.UserStatusActive, CreateTime: now}).Error).To(BeNil())

	Expect(db.Create(&domain.Template{ID: 1000, AccountID: accountID, Name: "onboarding",
		OwnerIDs: domain.IDList{101}, IsActive: true, TasksCount: 3, CreateTime: now}).Error).To(BeNil())

	Expect(db.Create(&domain.TaskTemplate{ID: 1001, AccountID: accountID, TemplateID: 1000,
		Number: 1, Name: "prepare {{city}}", Description: "prepare the {{city}} office"}).Error).To(BeNil())
	Expect(db.Create(&domain.TaskTemplate{ID: 1002, AccountID: accountID, TemplateID: 1000,
		Number: 2, Name: "review"}).Error).To(BeNil())
	Expect(db.Create(&domain.TaskTemplate{ID: 1003, AccountID: accountID, TemplateID: 1000,
		Number: 3, Name: "finish"}).Error).To(BeNil())

	Expect(db.Create(&domain.RawPerformerTemplate{ID: 2001, AccountID: accountID, TemplateID: 1000,
		TaskTemplateID: 1001, Type: domain.PerformerTypeUser, UserID: 102}).Error).To(BeNil())
	Expect(db.Create(&domain.RawPerformerTemplate{ID: 2002, AccountID: accountID, TemplateID: 1000,
		TaskTemplateID: 1002, Type: domain.PerformerTypeWorkflowStarter}).Error).To(BeNil())
	Expect(db.Create(&domain.RawPerformerTemplate{ID: 2003, AccountID: accountID, TemplateID: 1000,
		TaskTemplateID: 1003, Type: domain.PerformerTypeField, FieldAPIName: "assignee"}).Error).To(BeNil())

	wf := domain.Workflow{ID: 3000, AccountID: accountID, TemplateID: 1000, StarterID: 101,
		Name: "onboarding run", Status: domain.WorkflowStatusRunning, TasksCount: 3,
		Logo: "https://cdn.example.com/acme.png", DateCreated: now}
	Expect(db.Create(&wf).Error).To(BeNil())

	Expect(db.Create(&domain.Task{ID: 3001, AccountID: accountID, WorkflowID: wf.ID, TaskTemplateID: 1001,
		Number: 1, Name: "prepare {{city}}"}).Error).To(BeNil())
	Expect(db.Create(&domain.Task{ID: 3002, AccountID: accountID, WorkflowID: wf.ID, TaskTemplateID: 1002,
		Number: 2, Name: "review"}).Error).To(BeNil())
	Expect(db.Create(&domain.Task{ID: 3003, AccountID: accountID, WorkflowID: wf.ID, TaskTemplateID: 1003,
		Number: 3, Name: "finish"}).Error).To(BeNil())

	return &wf
}

func starterSecCtx() *session.Context {
	sec := testinfra.BuildSecCtx(101, 1, "owner")
	sec.Identity.Name = "starter"
	return sec
}

func reloadWorkflow(db *gorm.DB, id types.ID) *domain.Workflow {
	wf := domain.Workflow{}
	Expect(db.Where(&domain.Workflow{ID: id}).First(&wf).Error).To(BeNil())
	return &wf
}

func reloadTask(db *gorm.DB, id types.ID) *domain.Task {
	task := domain.Task{}
	Expect(db.Where(&domain.Task{ID: id}).First(&task).Error).To(BeNil())
	return &task
}

func eventTypesOf(db *gorm.DB, workflowID types.ID) []event.EventType {
	var records []event.EventRecord
	Expect(db.Where(&event.EventRecord{Event: event.Event{WorkflowID: workflowID}}).
		Order("timestamp ASC, id ASC").Find(&records).Error).To(BeNil())
	eventTypes := make([]event.EventType, 0, len(records))
	for _, r := range records {
		eventTypes = append(eventTypes, r.EventType)
	}
	return eventTypes
}
