package models

import "time"

// LinkStatus tracks the lifecycle of a short code. Transitions are monotonic:
// a link only ever moves from active to deleted, codes are never reused.
type LinkStatus string

const (
	// LinkStatusActive marks a resolvable link.
	LinkStatusActive LinkStatus = "active"
	// LinkStatusDeleted marks a tombstoned link. The row is retained so that
	// in-flight readers observe a definitive tombstone instead of a gap.
	LinkStatusDeleted LinkStatus = "deleted"
)

// Link represents one registered short code and its destination.
type Link struct {
	BaseModel

	Code        string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	Destination string     `gorm:"type:text;not null;index" json:"destination"`
	Hidden      bool       `gorm:"not null;default:false" json:"hidden"`
	Status      LinkStatus `gorm:"type:varchar(16);not null;index;default:active" json:"status"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Active reports whether the link still resolves.
func (l *Link) Active() bool {
	return l != nil && l.Status == LinkStatusActive
}
