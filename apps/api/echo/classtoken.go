package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/classtoken"
)

type classTokenApi struct {
	svc *classtoken.Service
}

func registerClassTokenAPI(g *echo.Group, svc *classtoken.Service) {
	api := classTokenApi{svc: svc}

	tg := g.Group("/class-tokens")
	tg.GET("", api.queryActive)
	tg.POST("/validate", api.validate)
	tg.POST("/:classId", api.generate)
	tg.DELETE("/:token", api.invalidate)
}

// Handlers

func (api *classTokenApi) generate(ctx echo.Context) error {
	var data GenerateTokenRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateTokenRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	tok, err := api.svc.Generate(ctx.Request().Context(), ctx.Param("classId"), data.ExpirationDate)
	if err != nil {
		return errors.Wrap(err, "generating class token")
	}
	return ctx.JSON(http.StatusCreated, tok)
}

func (api *classTokenApi) validate(ctx echo.Context) error {
	var data ValidateTokenRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ValidateTokenRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cls, err := api.svc.Validate(ctx.Request().Context(), data.Token)
	if err != nil {
		return errors.Wrap(err, "validating class token")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classTokenApi) invalidate(ctx echo.Context) error {
	if err := api.svc.Invalidate(ctx.Request().Context(), ctx.Param("token")); err != nil {
		return errors.Wrap(err, "invalidating class token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classTokenApi) queryActive(ctx echo.Context) error {
	var filter classtoken.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var pg core.Paginator
	if err := ctx.Bind(&pg); err != nil {
		return errors.Wrap(err, "binding to Paginator")
	}

	toks, total, err := api.svc.QueryActive(ctx.Request().Context(), filter, pg)
	if err != nil {
		return errors.Wrap(err, "querying active class tokens")
	}
	if toks == nil {
		toks = []classtoken.ClassToken{}
	}
	return ctx.JSON(http.StatusOK, TokenListResponse{Total: total, Results: toks})
}

type (
	GenerateTokenRequest struct {
		ExpirationDate time.Time `json:"expiration_date" validate:"required"`
	}

	ValidateTokenRequest struct {
		Token string `json:"token" validate:"required"`
	}

	TokenListResponse struct {
		Total   int                     `json:"total"`
		Results []classtoken.ClassToken `json:"results"`
	}
)

func (gr *GenerateTokenRequest) Validate() error {
	return core.Validate.Struct(gr)
}

func (vr *ValidateTokenRequest) Validate() error {
	vr.Token = core.CleanString(vr.Token)
	return core.Validate.Struct(vr)
}
