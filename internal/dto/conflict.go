package dto

// ConflictQuery selects the scan scope.
type ConflictQuery struct {
	Scope   string `form:"scope" validate:"omitempty,oneof=period all"`
	Refresh bool   `form:"refresh"`
}
