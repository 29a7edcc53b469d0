package models

// ListRunsRequest is the query of GET /api/v1/runs.
type ListRunsRequest struct {
	SeriesID string `query:"series_id"`
	Limit    int    `query:"limit" default:"50" validate:"gte=1,lte=1000"`
}

// GetRunRequest is the path of GET /api/v1/runs/:run_id.
type GetRunRequest struct {
	RunID string `param:"run_id" validate:"required"`
}
