package activity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/trellis/pkg/database"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

// Repository writes the deal activity log.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Insert appends one activity entry. The id and timestamp are assigned here.
func (r *Repository) Insert(ctx context.Context, tenantID, dealID, description, link string) (*models.ActivityEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.Insert")
	defer span.End()

	entry := models.ActivityEntry{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		DealID:      dealID,
		Description: description,
		Link:        link,
		CreatedAt:   time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("deal_activity")
	sb.Cols("id", "tenant_id", "deal_id", "description", "link", "created_at")
	sb.Values(entry.ID, entry.TenantID, entry.DealID, entry.Description, entry.Link, entry.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "deal_id": dealID}).Error("Failed to insert activity entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert activity entry")
	}
	return &entry, nil
}

// ListByDeal returns a deal's activity entries, newest first.
func (r *Repository) ListByDeal(ctx context.Context, tenantID, dealID string, limit int) ([]models.ActivityEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.ListByDeal")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "deal_id", "description", "link", "created_at")
	sb.From("deal_activity")
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("deal_id", dealID))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var entries []models.ActivityEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "deal_id": dealID}).Error("Failed to list activity entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list activity entries")
	}
	return entries, nil
}
