// Package domain defines the advance allowance surface.
package domain

import (
	"github.com/bwmarrin/snowflake"
)

// Decision is the answer to "can this house advance this amount now".
// All figures are cents.
type Decision struct {
	Allowed     bool         `json:"allowed"`
	HouseID     snowflake.ID `json:"house_id"`
	Requested   int64        `json:"requested"`
	Allowance   int64        `json:"allowance"`
	Outstanding int64        `json:"outstanding"`
	Remaining   int64        `json:"remaining"`
	Shortfall   int64        `json:"shortfall"`
}

// Usage reports a house's advance position. OutstandingAdvanced comes
// from charge state and is the figure gating decisions; LedgerOutstanding
// is rebuilt from ledger entries and only audits the former.
type Usage struct {
	HouseID             snowflake.ID `json:"house_id"`
	Allowance           int64        `json:"allowance"`
	OutstandingAdvanced int64        `json:"outstanding_advanced"`
	Remaining           int64        `json:"remaining"`
	TotalAdvanced       int64        `json:"total_advanced"`
	TotalRepaid         int64        `json:"total_repaid"`
	CreditUsage         int64        `json:"credit_usage"`
	LedgerOutstanding   int64        `json:"ledger_outstanding"`
	AuditConsistent     bool         `json:"audit_consistent"`
}

// AdvanceResult summarizes one bill advance run.
type AdvanceResult struct {
	BillID         snowflake.ID   `json:"bill_id"`
	HouseID        snowflake.ID   `json:"house_id"`
	AdvancedCount  int            `json:"advanced_count"`
	AdvancedAmount int64          `json:"advanced_amount"`
	ChargeIDs      []snowflake.ID `json:"charge_ids"`
}
