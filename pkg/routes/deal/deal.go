package deal

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/trellis/internal/repositories/activity"
	"github.com/Ramsey-B/trellis/internal/repositories/client"
	"github.com/Ramsey-B/trellis/internal/repositories/property"
	"github.com/Ramsey-B/trellis/pkg/appcontext"
	"github.com/Ramsey-B/trellis/pkg/board"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/stages"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

var validate = validator.New()

// Register registers deal routes
func Register(g *echo.Group) {
	g.POST("", CreateDeal)
	g.GET("/:id", GetDeal)
	g.PATCH("/:id", EditDeal)
	g.GET("/:id/activity", GetDealActivity)
}

// CreateDeal creates a deal in an initial stage. The client and property must
// already exist; their display fields are denormalized onto the deal.
func CreateDeal(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "deal_handler.CreateDeal")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)

	var req models.CreateDealRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, clients, err := ectoinject.GetContext[*client.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, properties, err := ectoinject.GetContext[*property.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, engine, err := ectoinject.GetContext[*board.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cl, err := clients.Get(ctx, tenantID, req.ClientID)
	if err != nil {
		return err
	}
	if cl == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "client not found")
	}

	prop, err := properties.Get(ctx, tenantID, req.PropertyID)
	if err != nil {
		return err
	}
	if prop == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "property not found")
	}

	deal, err := engine.CreateDeal(ctx, tenantID, req, cl.Name, prop.Title)
	if err != nil {
		if errors.Is(err, stages.ErrUnknownStage) {
			return httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusCreated, deal)
}

// GetDeal returns one deal.
func GetDeal(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "deal_handler.GetDeal")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)
	id := c.Param("id")

	ctx, engine, err := ectoinject.GetContext[*board.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	deal, err := engine.GetDeal(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, board.ErrNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "deal not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, deal)
}

// EditDeal patches a deal's business fields. Placement never changes here.
func EditDeal(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "deal_handler.EditDeal")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)
	id := c.Param("id")

	var req models.EditDealRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, engine, err := ectoinject.GetContext[*board.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	deal, err := engine.EditFields(ctx, tenantID, id, req)
	if err != nil {
		if errors.Is(err, board.ErrNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "deal not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, deal)
}

// GetDealActivity lists a deal's activity log, newest first.
func GetDealActivity(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "deal_handler.GetDealActivity")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)
	id := c.Param("id")

	ctx, activities, err := ectoinject.GetContext[*activity.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entries, err := activities.ListByDeal(ctx, tenantID, id, 0)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entries)
}
