package model

import "time"

// PurgePlan is the output of the purge plan phase. The caller confirms it
// before handing it to Run.
type PurgePlan struct {
	PlanID    string            `json:"plan_id"`
	CreatedAt time.Time         `json:"created_at"`
	Selector  Selector          `json:"selector"`
	Entries   []*GraveyardEntry `json:"entries"`
	Bytes     int64             `json:"bytes"`
}

// PurgeFailure reports an entry that could not be erased.
type PurgeFailure struct {
	Entry *GraveyardEntry `json:"entry"`
	Error string          `json:"error"`
}

// PurgeResult summarizes an executed purge plan.
type PurgeResult struct {
	PlanID string            `json:"plan_id"`
	Purged []*GraveyardEntry `json:"purged"`
	Failed []PurgeFailure    `json:"failed,omitempty"`
	Bytes  int64             `json:"bytes"`
}
