package board

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/trellis/pkg/appcontext"
	boardengine "github.com/Ramsey-B/trellis/pkg/board"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/stages"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

var validate = validator.New()

// Register registers board routes
func Register(g *echo.Group) {
	g.GET("", GetBoard)
	g.POST("/move", MoveDeal)
}

// GetBoard returns the tenant's full funnel board, columns in canonical stage
// order.
func GetBoard(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "board_handler.GetBoard")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)

	ctx, engine, err := ectoinject.GetContext[*boardengine.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	resp, err := engine.Board(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// MoveDeal applies one drop gesture. A stale source index is a conflict, not
// an error: the caller refetches the board and retries from the fresh view.
func MoveDeal(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "board_handler.MoveDeal")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)

	var req models.MoveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, engine, err := ectoinject.GetContext[*boardengine.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := engine.Move(ctx, tenantID, req)
	if err != nil {
		return moveError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// moveError maps the engine's typed failures onto HTTP statuses.
func moveError(err error) error {
	switch {
	case errors.Is(err, boardengine.ErrNotFound):
		return httperror.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, boardengine.ErrStaleIndex):
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, boardengine.ErrInvalidRange):
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, stages.ErrUnknownStage):
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
