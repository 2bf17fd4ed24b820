package model

import "time"

// Campaign is a survey campaign run for one company.
type Campaign struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	URL         string    `json:"url,omitempty"`
	NbEmployees int       `json:"nb_employees"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record is one stored survey response. Data holds the form answers and
// Typo the typology output (recommendations), both as nested documents.
type Record struct {
	ID         string         `json:"id"`
	CampaignID string         `json:"campaign_id"`
	Data       map[string]any `json:"data"`
	Typo       map[string]any `json:"typo,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// WeeklyStats counts created and completed records for the week ending on
// the Sunday labelled by Week (YYYY-MM-DD).
type WeeklyStats struct {
	Week      string `json:"week" yaml:"week"`
	Created   int    `json:"created" yaml:"created"`
	Completed int    `json:"completed" yaml:"completed"`
}

// CampaignStats summarises a campaign's participation.
type CampaignStats struct {
	Name             string        `json:"name" yaml:"name"`
	CompanyID        string        `json:"company_id" yaml:"company_id"`
	CampaignID       string        `json:"campaign_id" yaml:"campaign_id"`
	NbEmployees      int           `json:"nb_employees" yaml:"nb_employees"`
	CompletedRecords int           `json:"completed_records" yaml:"completed_records"`
	TotalRecords     int           `json:"total_records" yaml:"total_records"`
	Weekly           []WeeklyStats `json:"weekly" yaml:"weekly"`
}
