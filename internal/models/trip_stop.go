package models

import "gorm.io/gorm"

// TripStop is one intermediate destination on a trip. Seq is 1-based;
// consumers sort by it ascending. The set is always replaced whole when a
// trip's stops change.
type TripStop struct {
	gorm.Model
	TripID      uint   `json:"trip_id" gorm:"index"`
	Destination string `json:"destination"`
	Seq         int    `json:"seq"`
	Notes       string `json:"notes"`
}
