package servehttp

import (
	"net/http"

	"pneumatic/bizerror"
	"pneumatic/common"
	"pneumatic/domain/progress"
	"pneumatic/event"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type KickoffBody struct {
	Fields []progress.FieldValueUpdating `json:"fields" validate:"required,min=1,dive"`
}

func RegisterWorkflowHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflows", middleWares...)

	handler := &workflowHandler{validator: validator.New()}

	g.POST(":id/start", handler.handleStartWorkflow)
	g.POST(":id/resume", handler.handleResumeWorkflow)
	g.PATCH(":id/kickoff", handler.handleUpdateKickoff)
	g.GET(":id/events", handler.handleQueryEvents)
}

type workflowHandler struct {
	validator *validator.Validate
}

func (h *workflowHandler) handleStartWorkflow(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	workflow, err := progress.StartWorkflowFunc(id, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *workflowHandler) handleResumeWorkflow(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	workflow, err := progress.ResumeWorkflowFunc(id, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *workflowHandler) handleUpdateKickoff(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	body := KickoffBody{}
	err = c.ShouldBindBodyWith(&body, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(body); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	workflow, err := progress.UpdateKickoffFieldsFunc(id, body.Fields, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *workflowHandler) handleQueryEvents(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	records, err := event.QueryEventsFunc(id, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, &common.PagedBody{List: records, Total: uint64(len(records))})
}
