package model

import (
	"time"
)

// Setting is key/value configuration persisted by category.
// No history is retained; last write wins.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	Category  string    `db:"category" json:"category"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Setting categories and keys for the assistant's admin-supplied
// custom instruction blocks.
const (
	SettingCategoryAssistant = "assistant"

	SettingKeyInstructionsFederal    = "custom_instructions_federal"
	SettingKeyInstructionsCalifornia = "custom_instructions_california"
)

// InstructionsKey returns the settings key holding the custom
// instruction text for a tool.
func InstructionsKey(tool ToolName) string {
	if tool == ToolCalifornia {
		return SettingKeyInstructionsCalifornia
	}
	return SettingKeyInstructionsFederal
}
