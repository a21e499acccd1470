package model

// AccessLevel describes what tier of the product a user may use.
type AccessLevel string

const (
	AccessLevelTrial   AccessLevel = "trial"
	AccessLevelPaid    AccessLevel = "paid"
	AccessLevelExpired AccessLevel = "expired"
)

// DurationType selects day- or month-granularity when computing an
// access code's expiry.
type DurationType string

const (
	DurationDays   DurationType = "days"
	DurationMonths DurationType = "months"
)

// ToolName identifies which leave-policy knowledge base a completion
// request runs against.
type ToolName string

const (
	ToolFederal    ToolName = "federal"
	ToolCalifornia ToolName = "california"
)

func ValidToolNames() []string {
	return []string{string(ToolFederal), string(ToolCalifornia)}
}

func ValidDurationTypes() []string {
	return []string{string(DurationDays), string(DurationMonths)}
}
