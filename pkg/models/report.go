package models

import "time"

// StageFunnelCount is the cumulative count for one stage: deals whose current
// stage rank is at or past this stage, plus all closed deals for active stages.
type StageFunnelCount struct {
	Stage Stage `json:"stage"`
	Count int   `json:"count"`
}

// StageConversion is the rate of deals reaching To among those that reached
// From. When no deal reached From the rate is undefined and Applicable is
// false; Rate is meaningless in that case and serialized as zero.
type StageConversion struct {
	From       Stage   `json:"from"`
	To         Stage   `json:"to"`
	Rate       float64 `json:"rate"`
	Applicable bool    `json:"applicable"`
}

// FunnelReport is the derived conversion analytics for one funnel snapshot.
// Stages are in canonical active order; terminal outcomes are bucketed
// separately.
type FunnelReport struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	From            *time.Time         `json:"from,omitempty"`
	To              *time.Time         `json:"to,omitempty"`
	TotalDeals      int                `json:"total_deals"`
	Stages          []StageFunnelCount `json:"stages"`
	Terminals       []StageFunnelCount `json:"terminals"`
	Conversions     []StageConversion  `json:"conversions"`
	TotalConversion StageConversion    `json:"total_conversion"`
}
