// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/clicktrail/clicktrail/internal/model"

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatsResponse is the body of GET /admin/stats.
type StatsResponse struct {
	*model.AggregatedStats
	IncludeArchived bool `json:"include_archived"`
	// Partial is set when a segment could not be read completely.
	Partial bool `json:"partial,omitempty"`
}
