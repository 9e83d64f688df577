package models

import "time"

// Audit actions recorded for grouping mutations.
const (
	AuditActionApplyGrouping   = "GROUPING_APPLY"
	AuditActionDiscardProposal = "GROUPING_PROPOSAL_DISCARD"
)

// Audited resources.
const (
	AuditResourceStudentGroups     = "student_groups"
	AuditResourceGroupingProposals = "grouping_proposals"
)

// AuditLog records a successful mutation of a class grouping.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	ClassID    string    `db:"class_id" json:"class_id"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
