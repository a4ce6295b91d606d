package models

import (
	"time"
)

// Stage is one step of the fixed, ordered pipeline sequence a deal moves
// through. The canonical order lives in the stage registry; a Stage value by
// itself carries no ordering.
type Stage string

// Deal represents one sales opportunity linking a client and a property.
// Stage and Position are owned by the pipeline engine; business fields may be
// edited independently without affecting placement.
type Deal struct {
	ID                  string    `json:"id" db:"id"`
	TenantID            string    `json:"tenant_id" db:"tenant_id"`
	ClientID            string    `json:"client_id" db:"client_id"`
	PropertyID          string    `json:"property_id" db:"property_id"`
	ClientName          string    `json:"client_name" db:"client_name"`
	PropertyTitle       string    `json:"property_title" db:"property_title"`
	ProposalAmount      float64   `json:"proposal_amount" db:"proposal_amount"`
	CommissionRate      *float64  `json:"commission_rate,omitempty" db:"commission_rate"`
	Stage               Stage     `json:"stage" db:"stage"`
	Position            int       `json:"position" db:"position"`
	Priority            bool      `json:"priority" db:"priority"`
	RecommendedToClient bool      `json:"recommended_to_client" db:"recommended_to_client"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// CreateDealRequest is the request for creating a deal in an initial stage.
type CreateDealRequest struct {
	ClientID            string   `json:"client_id" validate:"required"`
	PropertyID          string   `json:"property_id" validate:"required"`
	InitialStage        string   `json:"initial_stage" validate:"required"`
	ProposalAmount      float64  `json:"proposal_amount" validate:"gte=0"`
	CommissionRate      *float64 `json:"commission_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	Priority            bool     `json:"priority"`
	RecommendedToClient bool     `json:"recommended_to_client"`
}

// EditDealRequest is a partial update of a deal's business fields. Nil fields
// are left untouched. Placement is never affected by an edit.
type EditDealRequest struct {
	ProposalAmount      *float64 `json:"proposal_amount,omitempty" validate:"omitempty,gte=0"`
	CommissionRate      *float64 `json:"commission_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	Priority            *bool    `json:"priority,omitempty"`
	RecommendedToClient *bool    `json:"recommended_to_client,omitempty"`
}

// MoveRequest is one drop gesture on the funnel board. Source stage and index
// come from the caller's last known view; a mismatch with the current store
// state is reported as a stale-index conflict.
type MoveRequest struct {
	DealID      string `json:"deal_id" validate:"required"`
	SourceStage string `json:"source_stage" validate:"required"`
	SourceIndex int    `json:"source_index" validate:"gte=0"`
	DestStage   string `json:"dest_stage" validate:"required"`
	DestIndex   int    `json:"dest_index"`
}

// MoveResult reports the committed placement after a move.
type MoveResult struct {
	Deal         Deal  `json:"deal"`
	StageChanged bool  `json:"stage_changed"`
	DestIndex    int   `json:"dest_index"`
	NoOp         bool  `json:"no_op"`
}

// BoardColumn is the ordered list of deals currently in one stage.
type BoardColumn struct {
	Stage Stage  `json:"stage"`
	Deals []Deal `json:"deals"`
}

// BoardResponse is the full funnel board for a tenant, columns in canonical
// stage order (active stages first, then terminals).
type BoardResponse struct {
	Columns []BoardColumn `json:"columns"`
}
