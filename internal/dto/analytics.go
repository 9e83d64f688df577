package dto

// GroupAnalyticsQuery selects the analytics payload of a class.
type GroupAnalyticsQuery struct {
	ClassID        string `validate:"required"`
	IncludeDetails bool
}

// ExportAnalyticsQuery selects an analytics export.
type ExportAnalyticsQuery struct {
	ClassID string `validate:"required"`
	Format  string `validate:"omitempty,oneof=csv pdf CSV PDF"`
}

// GroupHistoryQuery lists historical metrics for a persisted group.
type GroupHistoryQuery struct {
	GroupID string `validate:"required"`
	Limit   int    `validate:"omitempty,min=1,max=100"`
}
