package servehttp_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"pneumatic/bizerror"
	"pneumatic/domain"
	"pneumatic/domain/progress"
	"pneumatic/event"
	"pneumatic/servehttp"
	"pneumatic/session"
	"pneumatic/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestWorkflowProgressionRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.New()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterWorkflowHandler(router)

	t.Run("should start a workflow", func(t *testing.T) {
		progress.StartWorkflowFunc = func(workflowID types.ID, sec *session.Context) (*domain.Workflow, error) {
			Expect(workflowID).To(Equal(types.ID(3000)))
			return &domain.Workflow{ID: workflowID, Status: domain.WorkflowStatusRunning, CurrentTask: 1}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/workflows/3000/start", nil)
		status, _, body := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"currentTask":1`))
	})

	t.Run("should surface start errors", func(t *testing.T) {
		progress.StartWorkflowFunc = func(workflowID types.ID, sec *session.Context) (*domain.Workflow, error) {
			return nil, bizerror.ErrWorkflowAlreadyStarted
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/workflows/3000/start", nil)
		status, _, body := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"workflows.already_started","message":"workflow is already started"}`))
	})

	t.Run("should resume a workflow", func(t *testing.T) {
		progress.ResumeWorkflowFunc = func(workflowID types.ID, sec *session.Context) (*domain.Workflow, error) {
			Expect(workflowID).To(Equal(types.ID(3000)))
			return &domain.Workflow{ID: workflowID, Status: domain.WorkflowStatusRunning, CurrentTask: 2}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/workflows/3000/resume", nil)
		status, _, body := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"currentTask":2`))
	})

	t.Run("should return 400 for an invalid workflow id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/workflows/abc/start", nil)
		status, _, body := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'"}`))
	})
}

func TestKickoffRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.New()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterWorkflowHandler(router)

	t.Run("should return 400 when fields are missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/v1/workflows/3000/kickoff", bytes.NewReader([]byte(`{}`)))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))

		req = httptest.NewRequest(http.MethodPatch, "/v1/workflows/3000/kickoff",
			bytes.NewReader([]byte(`{"fields": [{"value": "x"}]}`)))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	t.Run("should update kickoff fields", func(t *testing.T) {
		var received []progress.FieldValueUpdating
		progress.UpdateKickoffFieldsFunc = func(workflowID types.ID, updatings []progress.FieldValueUpdating, sec *session.Context) (*domain.Workflow, error) {
			Expect(workflowID).To(Equal(types.ID(3000)))
			received = updatings
			return &domain.Workflow{ID: workflowID, Status: domain.WorkflowStatusRunning}, nil
		}
		req := httptest.NewRequest(http.MethodPatch, "/v1/workflows/3000/kickoff",
			bytes.NewReader([]byte(`{"fields": [{"apiName": "city", "type": "STRING", "value": "Amsterdam"}]}`)))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(len(received)).To(Equal(1))
		Expect(received[0].APIName).To(Equal("city"))
		Expect(received[0].Value).To(Equal("Amsterdam"))
	})

	t.Run("should surface update errors", func(t *testing.T) {
		progress.UpdateKickoffFieldsFunc = func(workflowID types.ID, updatings []progress.FieldValueUpdating, sec *session.Context) (*domain.Workflow, error) {
			return nil, bizerror.ErrWorkflowEnded
		}
		req := httptest.NewRequest(http.MethodPatch, "/v1/workflows/3000/kickoff",
			bytes.NewReader([]byte(`{"fields": [{"apiName": "city", "value": "x"}]}`)))
		status, _, body := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"workflows.ended","message":"workflow has reached a terminal status"}`))
	})
}

func TestQueryEventsRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.New()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterWorkflowHandler(router)

	t.Run("should list the workflow events", func(t *testing.T) {
		event.QueryEventsFunc = func(workflowID types.ID, sec *session.Context) ([]event.EventRecord, error) {
			Expect(workflowID).To(Equal(types.ID(3000)))
			return []event.EventRecord{
				{ID: 1, Event: event.Event{WorkflowID: workflowID, EventType: event.EventTypeWorkflowStart}},
			}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/workflows/3000/events", nil)
		status, _, body := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"eventType":"WORKFLOW_START"`))
		Expect(body).To(ContainSubstring(`"total":1`))
	})
}
