package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Result is the outcome of one HSI recomputation.
type Result struct {
	HouseID          snowflake.ID `json:"house_id"`
	Score            int          `json:"score"`
	PreviousScore    int          `json:"previous_score"`
	MeasuredScore    int          `json:"measured_score"`
	Bracket          int          `json:"bracket"`
	PreviousBracket  int          `json:"previous_bracket"`
	FeeMultiplier    float64      `json:"fee_multiplier"`
	CreditMultiplier float64      `json:"credit_multiplier"`
	RiskFactor       float64      `json:"risk_factor"`
	TrendFactor      float64      `json:"trend_factor"`
	RiskMultiplier   float64      `json:"risk_multiplier"`
	SnapshotType     SnapshotType `json:"snapshot_type"`
	UpdatedReason    string       `json:"updated_reason"`
	AssessedAt       time.Time    `json:"assessed_at"`
	WarningIssued    bool         `json:"warning_issued"`
}

type Service interface {
	// ComputeHSI recomputes the house status index for one house. The
	// whole recomputation (current-state upsert plus history snapshot)
	// commits atomically; recomputation per house is serialized.
	ComputeHSI(ctx context.Context, houseID snowflake.ID) (Result, error)

	// Current returns the stored current-state row, or nil when the house
	// has never been scored.
	Current(ctx context.Context, houseID snowflake.ID) (*HouseStatusIndex, error)

	// History lists snapshots, newest first. snapshotType filters when
	// non-empty.
	History(ctx context.Context, houseID snowflake.ID, snapshotType SnapshotType, limit int) ([]*HouseRiskHistory, error)

	// CleanupOldRiskHistory bulk-deletes weekly snapshots older than the
	// retention window and reports the number of rows removed. Safe to
	// re-run.
	CleanupOldRiskHistory(ctx context.Context) (int64, error)
}

var (
	ErrHouseNotFound        = errors.New("house_not_found")
	ErrAssessmentInProgress = errors.New("assessment_in_progress")
)
