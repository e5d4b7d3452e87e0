package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/task"
)

// userIDHeader carries the acting user's id, injected by the gateway's
// auth layer.
const userIDHeader = "X-User-ID"

var errMissingUserID = errors.New("missing " + userIDHeader + " header")

type taskApi struct {
	svc *task.Service
}

func registerTaskAPI(g *echo.Group, svc *task.Service) {
	api := taskApi{svc: svc}

	tg := g.Group("/tasks")

	// fan-out endpoints
	tg.POST("/user/:userId", api.createForUser)
	tg.POST("/class/:classId", api.createForClass)
	tg.POST("/period/:periodId", api.createForPeriod)
	tg.POST("/all", api.createForAllUsers)

	// listing endpoints
	tg.GET("/user/:userId", api.queryByUser)
	tg.GET("/class/:classId", api.queryByClass)
	tg.GET("/period/:periodId", api.queryByPeriod)
	tg.GET("/created-by/:userId", api.queryByCreator)

	// detail endpoints
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
	tg.PATCH("/:id/assignments/:userId", api.updateAssignmentStatus)
}

// actingUserID resolves the acting user from the request headers.
func actingUserID(ctx echo.Context) (string, error) {
	id := core.CleanString(ctx.Request().Header.Get(userIDHeader))
	if id == "" {
		return "", core.NewValidationError(errMissingUserID)
	}
	return id, nil
}

// Handlers

func (api *taskApi) createForUser(ctx echo.Context) error {
	return api.create(ctx, func(creatorID string, nt task.NewTask) (task.Task, error) {
		return api.svc.CreateForUser(ctx.Request().Context(), ctx.Param("userId"), creatorID, nt)
	})
}

func (api *taskApi) createForClass(ctx echo.Context) error {
	return api.create(ctx, func(creatorID string, nt task.NewTask) (task.Task, error) {
		return api.svc.CreateForClass(ctx.Request().Context(), ctx.Param("classId"), creatorID, nt)
	})
}

func (api *taskApi) createForPeriod(ctx echo.Context) error {
	return api.create(ctx, func(creatorID string, nt task.NewTask) (task.Task, error) {
		return api.svc.CreateForPeriod(ctx.Request().Context(), ctx.Param("periodId"), creatorID, nt)
	})
}

func (api *taskApi) createForAllUsers(ctx echo.Context) error {
	return api.create(ctx, func(creatorID string, nt task.NewTask) (task.Task, error) {
		return api.svc.CreateForAllUsers(ctx.Request().Context(), creatorID, nt)
	})
}

func (api *taskApi) create(ctx echo.Context, fn func(creatorID string, nt task.NewTask) (task.Task, error)) error {
	creatorID, err := actingUserID(ctx)
	if err != nil {
		return err
	}

	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}

	tsk, err := fn(creatorID, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, tsk)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	tsk, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) update(ctx echo.Context) error {
	editorID, err := actingUserID(ctx)
	if err != nil {
		return err
	}

	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}

	tsk, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), editorID, data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) updateAssignmentStatus(ctx echo.Context) error {
	var data UpdateAssignmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignmentRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	a, err := api.svc.UpdateAssignmentStatus(
		ctx.Request().Context(), ctx.Param("id"), ctx.Param("userId"), task.Status(data.Status))
	if err != nil {
		return errors.Wrap(err, "updating assignment status")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *taskApi) queryByUser(ctx echo.Context) error {
	return api.query(ctx, func(filter task.QueryFilter, pg core.Paginator) ([]task.Task, error) {
		return api.svc.QueryByUser(ctx.Request().Context(), ctx.Param("userId"), filter, pg)
	})
}

func (api *taskApi) queryByClass(ctx echo.Context) error {
	return api.query(ctx, func(filter task.QueryFilter, pg core.Paginator) ([]task.Task, error) {
		return api.svc.QueryByClass(ctx.Request().Context(), ctx.Param("classId"), filter, pg)
	})
}

func (api *taskApi) queryByPeriod(ctx echo.Context) error {
	return api.query(ctx, func(filter task.QueryFilter, pg core.Paginator) ([]task.Task, error) {
		return api.svc.QueryByPeriod(ctx.Request().Context(), ctx.Param("periodId"), filter, pg)
	})
}

func (api *taskApi) queryByCreator(ctx echo.Context) error {
	return api.query(ctx, func(_ task.QueryFilter, pg core.Paginator) ([]task.Task, error) {
		return api.svc.QueryByCreator(ctx.Request().Context(), ctx.Param("userId"), pg)
	})
}

func (api *taskApi) query(ctx echo.Context, fn func(filter task.QueryFilter, pg core.Paginator) ([]task.Task, error)) error {
	var filter task.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var pg core.Paginator
	if err := ctx.Bind(&pg); err != nil {
		return errors.Wrap(err, "binding to Paginator")
	}

	tasks, err := fn(filter, pg)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

type UpdateAssignmentRequest struct {
	Status string `json:"status" validate:"required"`
}

func (ur *UpdateAssignmentRequest) Validate() error {
	ur.Status = core.CleanString(ur.Status, true /* lower */)
	return core.Validate.Struct(ur)
}
