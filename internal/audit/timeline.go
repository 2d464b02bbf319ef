package audit

import "time"

// TimelineFilters narrows the audit timeline. From is inclusive and To exclusive.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry as shown on the timeline.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo describes where a page sits in the timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// WindowQuery is what a repository needs to fetch one slice of the timeline,
// newest first.
type WindowQuery struct {
	Filters TimelineFilters
	Offset  int
	Limit   int
}

// Matches reports whether row passes the filters.
func (f TimelineFilters) Matches(row TimelineRow) bool {
	if !f.From.IsZero() && row.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !row.At.Before(f.To) {
		return false
	}
	if f.ActorID > 0 && row.ActorID != f.ActorID {
		return false
	}
	if f.Entity != "" && row.Entity != f.Entity {
		return false
	}
	if f.Action != "" && row.Action != f.Action {
		return false
	}
	return true
}
