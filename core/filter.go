package core

import (
	"slices"
	"time"
)

// InstanceFilter selects instances for listing and purging. Zero values do not restrict the result.
type InstanceFilter struct {
	Statuses []RuntimeStatus

	Name string

	ParentInstanceID string

	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	// CompletedBefore only matches terminal instances that completed before the given time
	CompletedBefore *time.Time

	// Limit is the maximum number of instances returned, 0 means no limit
	Limit int
}

func (f *InstanceFilter) Matches(s *InstanceState) bool {
	if f == nil {
		return true
	}

	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status) {
		return false
	}

	if f.Name != "" && f.Name != s.Name {
		return false
	}

	if f.ParentInstanceID != "" && f.ParentInstanceID != s.ParentInstanceID {
		return false
	}

	if f.CreatedAfter != nil && s.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}

	if f.CreatedBefore != nil && !s.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}

	if f.CompletedBefore != nil && (s.CompletedAt == nil || !s.CompletedAt.Before(*f.CompletedBefore)) {
		return false
	}

	return true
}
