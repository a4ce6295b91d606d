package deal

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/trellis/pkg/database"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

var dealColumns = []string{
	"id", "tenant_id", "client_id", "property_id", "client_name", "property_title",
	"proposal_amount", "commission_rate", "stage", "position", "priority",
	"recommended_to_client", "created_at", "updated_at",
}

// Repository handles deal persistence. The in-memory board owns stage and
// position at runtime; rows here are the durable catch-up written by the
// persistence subscriber and read back on hydration.
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

// Insert writes a newly created deal.
func (r *Repository) Insert(ctx context.Context, deal models.Deal) error {
	ctx, span := tracing.StartSpan(ctx, "deal.Repository.Insert")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("deals")
	sb.Cols(dealColumns...)
	sb.Values(
		deal.ID, deal.TenantID, deal.ClientID, deal.PropertyID, deal.ClientName,
		deal.PropertyTitle, deal.ProposalAmount, deal.CommissionRate, deal.Stage,
		deal.Position, deal.Priority, deal.RecommendedToClient, deal.CreatedAt,
		deal.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": deal.ID, "tenant_id": deal.TenantID}).Error("Failed to insert deal")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert deal")
	}
	return nil
}

// Get returns one deal scoped to a tenant, nil when the row does not exist.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "deal.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(dealColumns...)
	sb.From("deals")
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("id", id))

	query, args := sb.Build()
	var deal models.Deal
	if err := r.db.GetContext(ctx, &deal, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to get deal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get deal")
	}
	return &deal, nil
}

// UpdateFields writes the committed business fields of a deal. Stage and
// position are deliberately excluded; placement changes go through
// UpdatePlacement so that field edits can never race a move into a partial row.
func (r *Repository) UpdateFields(ctx context.Context, deal models.Deal) error {
	ctx, span := tracing.StartSpan(ctx, "deal.Repository.UpdateFields")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("deals")
	sb.Set(
		sb.Assign("proposal_amount", deal.ProposalAmount),
		sb.Assign("commission_rate", deal.CommissionRate),
		sb.Assign("priority", deal.Priority),
		sb.Assign("recommended_to_client", deal.RecommendedToClient),
		sb.Assign("updated_at", deal.UpdatedAt),
	)
	sb.Where(sb.Equal("tenant_id", deal.TenantID), sb.Equal("id", deal.ID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": deal.ID, "tenant_id": deal.TenantID}).Error("Failed to update deal fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update deal")
	}
	return nil
}

// UpdatePlacement rewrites the positions of the affected columns in one
// transaction. Columns arrive as committed ordered id lists, so each affected
// column is renumbered 0..n-1 and the moved deal's stage is stamped in the same
// pass. All or nothing: a partial position rewrite would leave the durable
// board inconsistent with the in-memory one.
func (r *Repository) UpdatePlacement(ctx context.Context, tenantID string, deal models.Deal, columns map[models.Stage][]string) error {
	ctx, span := tracing.StartSpan(ctx, "deal.Repository.UpdatePlacement")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to begin placement transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for stage, ids := range columns {
		for position, id := range ids {
			sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
			sb.Update("deals")
			sb.Set(
				sb.Assign("stage", stage),
				sb.Assign("position", position),
				sb.Assign("updated_at", now),
			)
			sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("id", id))

			query, args := sb.Build()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "deal_id": id, "stage": string(stage)}).Error("Failed to rewrite column position")
				return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update placement")
			}
		}
	}

	// Column lists place the moved deal, but its stage stamp above only runs if
	// it appears in a list; stamping it directly covers moves into an empty
	// terminal column as well.
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("deals")
	sb.Set(
		sb.Assign("stage", deal.Stage),
		sb.Assign("position", deal.Position),
		sb.Assign("updated_at", now),
	)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("id", deal.ID))
	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "deal_id": deal.ID}).Error("Failed to stamp moved deal")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update placement")
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to commit placement transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit placement")
	}
	return nil
}

// LoadBoard returns every deal for a tenant ordered by stage and position. The
// pipeline engine calls this once per tenant to hydrate its in-memory board.
func (r *Repository) LoadBoard(ctx context.Context, tenantID string) ([]models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "deal.Repository.LoadBoard")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(dealColumns...)
	sb.From("deals")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("stage", "position")

	query, args := sb.Build()
	var deals []models.Deal
	if err := r.db.SelectContext(ctx, &deals, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to load board")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load board")
	}
	return deals, nil
}
