package servehttp

import (
	"errors"
	"net/http"

	"pneumatic/bizerror"
	"pneumatic/common"
	"pneumatic/domain/performer"
	"pneumatic/domain/progress"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type PerformerBody struct {
	UserID  types.ID `json:"userId"`
	Email   string   `json:"email"`
	GroupID types.ID `json:"groupId"`
}

type GuestPerformerBody struct {
	Email string `json:"email" validate:"required,email"`
}

func RegisterTaskHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/tasks", middleWares...)

	handler := &taskHandler{validator: validator.New()}

	g.POST(":id/performers", handler.handleCreatePerformer)
	g.DELETE(":id/performers", handler.handleDeletePerformer)

	g.POST(":id/guest-performers", handler.handleCreateGuestPerformer)
	g.DELETE(":id/guest-performers", handler.handleDeleteGuestPerformer)

	g.POST(":id/complete", handler.handleCompleteTask)
}

type taskHandler struct {
	validator *validator.Validate
}

func (h *taskHandler) handleCreatePerformer(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	body := PerformerBody{}
	err = c.ShouldBindBodyWith(&body, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	key := performerKey(body)
	if key.IsEmpty() {
		panic(&bizerror.ErrBadParam{Cause: errors.New("one of userId, email or groupId is required")})
	}

	row, err := performer.CreatePerformerFunc(id, key, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *taskHandler) handleDeletePerformer(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	body := PerformerBody{}
	err = c.ShouldBindBodyWith(&body, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	key := performerKey(body)
	if key.IsEmpty() {
		panic(&bizerror.ErrBadParam{Cause: errors.New("one of userId, email or groupId is required")})
	}

	err = performer.DeletePerformerFunc(id, key, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *taskHandler) handleCreateGuestPerformer(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	body := GuestPerformerBody{}
	err = c.ShouldBindBodyWith(&body, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(body); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	invitation, err := performer.CreateGuestPerformerFunc(id, body.Email, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, invitation)
}

func (h *taskHandler) handleDeleteGuestPerformer(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	body := GuestPerformerBody{}
	err = c.ShouldBindBodyWith(&body, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(body); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	err = performer.DeleteGuestPerformerFunc(id, body.Email, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *taskHandler) handleCompleteTask(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	task, err := progress.CompleteTaskForPerformerFunc(id, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, task)
}

func performerKey(body PerformerBody) performer.PerformerKey {
	if body.GroupID != 0 {
		return performer.ByGroup(body.GroupID)
	}
	if body.UserID != 0 {
		return performer.ByID(body.UserID)
	}
	if body.Email != "" {
		return performer.ByEmail(body.Email)
	}
	return performer.PerformerKey{}
}
