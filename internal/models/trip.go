package models

import (
	"time"

	"gorm.io/gorm"
)

// Trip statuses. "in_process" is accepted on input as an alias for started.
const (
	TripNotStarted = "not_started"
	TripStarted    = "started"
	TripCompleted  = "completed"
	TripCancelled  = "cancelled"
)

// NormalizeTripStatus maps an input status to its canonical value, or
// returns false for anything outside the set.
func NormalizeTripStatus(s string) (string, bool) {
	switch s {
	case TripNotStarted, TripStarted, TripCompleted, TripCancelled:
		return s, true
	case "in_process":
		return TripStarted, true
	}
	return "", false
}

type Trip struct {
	gorm.Model
	TripNo    string `json:"trip_no" gorm:"unique"`
	VehicleID uint   `json:"vehicle_id" gorm:"index"`
	DriverID  uint   `json:"driver_id" gorm:"index"`

	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	WayCode      string `json:"way_code"`

	Status  string   `json:"status" gorm:"default:not_started"`
	Mileage *float64 `json:"mileage"`

	// Reference to an uploaded consignment note, nil until attached.
	CMRDocument *string `json:"cmr_document"`

	DriverNotes string `json:"driver_notes"`
	AdminNotes  string `json:"admin_notes"`

	TripDate      time.Time `json:"trip_date"`
	InvoiceNo     *string   `json:"invoice_no"`
	InvoiceAmount *float64  `json:"invoice_amount"`

	CreatedByID uint `json:"created_by_id"`

	Stops []TripStop `gorm:"foreignKey:TripID" json:"stops,omitempty"`
}
