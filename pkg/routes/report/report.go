package report

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/trellis/pkg/appcontext"
	"github.com/Ramsey-B/trellis/pkg/board"
	"github.com/Ramsey-B/trellis/pkg/funnel"
	"github.com/Ramsey-B/trellis/pkg/redis"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

const dateLayout = "2006-01-02"

// Register registers report routes
func Register(g *echo.Group) {
	g.GET("/funnel", GetFunnelReport)
}

// GetFunnelReport computes the funnel report over a live board snapshot,
// optionally filtered to deals created inside [from, to]. Reports are cached
// per tenant and range until the next stage change.
func GetFunnelReport(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "report_handler.GetFunnelReport")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)

	from, err := parseDate(c.QueryParam("from"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "from must be a YYYY-MM-DD date")
	}
	to, err := parseDate(c.QueryParam("to"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "to must be a YYYY-MM-DD date")
	}
	if from != nil && to != nil && to.Before(*from) {
		return httperror.NewHTTPError(http.StatusBadRequest, "to must not precede from")
	}
	if to != nil {
		// an inclusive date covers the whole day
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	ctx, engine, err := ectoinject.GetContext[*board.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	ctx, cache, cacheErr := ectoinject.GetContext[*redis.ReportCache](ctx)
	key := rangeKey(from, to)
	if cacheErr == nil && cache != nil {
		if cached, ok := cache.Get(ctx, tenantID, key); ok {
			return c.JSON(http.StatusOK, cached)
		}
	}

	snapshot, err := engine.Snapshot(ctx, tenantID)
	if err != nil {
		return err
	}

	result := funnel.Compute(engine.Registry(), snapshot, from, to)

	if cacheErr == nil && cache != nil {
		cache.Set(ctx, tenantID, key, &result)
	}

	return c.JSON(http.StatusOK, result)
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func rangeKey(from, to *time.Time) string {
	f, t := "open", "open"
	if from != nil {
		f = from.Format(dateLayout)
	}
	if to != nil {
		t = to.Format(dateLayout)
	}
	return fmt.Sprintf("%s_%s", f, t)
}
