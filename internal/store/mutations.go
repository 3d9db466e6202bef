package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"fleet_tracker/internal/models"
)

// Sentinel errors the adapter and the offline replay both map to their own
// failure shapes.
var (
	ErrTripNotFound   = errors.New("trip not found")
	ErrMissingVehicle = errors.New("referenced vehicle does not exist")
	ErrMissingDriver  = errors.New("referenced driver does not exist")
)

// StopInput is one destination in a trip's stop set.
type StopInput struct {
	Destination string `json:"destination"`
	Seq         int    `json:"seq"`
	Notes       string `json:"notes"`
}

// TripCreate is the payload for creating a trip. It is shared between the
// live adapter path and the offline replay path so both apply identical
// mutations.
type TripCreate struct {
	TripNo        string      `json:"trip_no"`
	VehicleID     uint        `json:"vehicle_id"`
	DriverID      uint        `json:"driver_id"`
	FromLocation  string      `json:"from_location"`
	ToLocation    string      `json:"to_location"`
	WayCode       string      `json:"way_code"`
	Status        string      `json:"status"`
	Mileage       *float64    `json:"mileage"`
	DriverNotes   string      `json:"driver_notes"`
	AdminNotes    string      `json:"admin_notes"`
	TripDate      string      `json:"trip_date"`
	InvoiceNo     *string     `json:"invoice_no"`
	InvoiceAmount *float64    `json:"invoice_amount"`
	Stops         []StopInput `json:"stops"`

	CreatedByID uint `json:"created_by_id"`
}

// MissingFields names the required fields absent from the payload.
func (in TripCreate) MissingFields() []string {
	var missing []string
	if in.TripNo == "" {
		missing = append(missing, "trip_no")
	}
	if in.VehicleID == 0 {
		missing = append(missing, "vehicle_id")
	}
	if in.DriverID == 0 {
		missing = append(missing, "driver_id")
	}
	if in.FromLocation == "" {
		missing = append(missing, "from_location")
	}
	if in.ToLocation == "" {
		missing = append(missing, "to_location")
	}
	if in.TripDate == "" {
		missing = append(missing, "trip_date")
	}
	return missing
}

// TripUpdate is a partial trip update: only non-nil fields are written. A
// non-nil Stops replaces the whole stop set.
type TripUpdate struct {
	TripNo        *string      `json:"trip_no"`
	VehicleID     *uint        `json:"vehicle_id"`
	DriverID      *uint        `json:"driver_id"`
	FromLocation  *string      `json:"from_location"`
	ToLocation    *string      `json:"to_location"`
	WayCode       *string      `json:"way_code"`
	Status        *string      `json:"status"`
	Mileage       *float64     `json:"mileage"`
	DriverNotes   *string      `json:"driver_notes"`
	AdminNotes    *string      `json:"admin_notes"`
	TripDate      *string      `json:"trip_date"`
	InvoiceNo     *string      `json:"invoice_no"`
	InvoiceAmount *float64     `json:"invoice_amount"`
	Stops         *[]StopInput `json:"stops"`
}

// ParseTripDate accepts a plain date or a full timestamp.
func ParseTripDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// ValidateTripRefs checks that the referenced vehicle and driver rows exist.
func (s *Store) ValidateTripRefs(vehicleID, driverID uint) error {
	var n int64
	if err := s.db.Model(&models.Vehicle{}).Where("id = ?", vehicleID).Count(&n).Error; err != nil {
		return fmt.Errorf("check vehicle: %w", err)
	}
	if n == 0 {
		return ErrMissingVehicle
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", driverID).Count(&n).Error; err != nil {
		return fmt.Errorf("check driver: %w", err)
	}
	if n == 0 {
		return ErrMissingDriver
	}
	return nil
}

// CreateTrip inserts the trip row and its stop rows in one transaction and
// returns the assembled trip.
func (s *Store) CreateTrip(in TripCreate) (models.Trip, error) {
	date, err := ParseTripDate(in.TripDate)
	if err != nil {
		return models.Trip{}, fmt.Errorf("parse trip_date: %w", err)
	}
	status := models.TripNotStarted
	if in.Status != "" {
		if st, ok := models.NormalizeTripStatus(in.Status); ok {
			status = st
		}
	}

	trip := models.Trip{
		TripNo:        in.TripNo,
		VehicleID:     in.VehicleID,
		DriverID:      in.DriverID,
		FromLocation:  in.FromLocation,
		ToLocation:    in.ToLocation,
		WayCode:       in.WayCode,
		Status:        status,
		Mileage:       in.Mileage,
		DriverNotes:   in.DriverNotes,
		AdminNotes:    in.AdminNotes,
		TripDate:      date,
		InvoiceNo:     in.InvoiceNo,
		InvoiceAmount: in.InvoiceAmount,
		CreatedByID:   in.CreatedByID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trip).Error; err != nil {
			return err
		}
		for _, st := range in.Stops {
			stop := models.TripStop{
				TripID:      trip.ID,
				Destination: st.Destination,
				Seq:         st.Seq,
				Notes:       st.Notes,
			}
			if err := tx.Create(&stop).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Trip{}, err
	}
	return s.GetTrip(trip.ID)
}

// UpdateTrip applies a partial update. When Stops is present the existing
// stop set is deleted and reinserted rather than diffed.
func (s *Store) UpdateTrip(id uint, in TripUpdate) (models.Trip, error) {
	var trip models.Trip
	if err := s.db.First(&trip, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Trip{}, ErrTripNotFound
		}
		return models.Trip{}, err
	}

	if in.TripNo != nil {
		trip.TripNo = *in.TripNo
	}
	if in.VehicleID != nil {
		trip.VehicleID = *in.VehicleID
	}
	if in.DriverID != nil {
		trip.DriverID = *in.DriverID
	}
	if in.FromLocation != nil {
		trip.FromLocation = *in.FromLocation
	}
	if in.ToLocation != nil {
		trip.ToLocation = *in.ToLocation
	}
	if in.WayCode != nil {
		trip.WayCode = *in.WayCode
	}
	if in.Status != nil {
		if st, ok := models.NormalizeTripStatus(*in.Status); ok {
			trip.Status = st
		}
	}
	if in.Mileage != nil {
		trip.Mileage = in.Mileage
	}
	if in.DriverNotes != nil {
		trip.DriverNotes = *in.DriverNotes
	}
	if in.AdminNotes != nil {
		trip.AdminNotes = *in.AdminNotes
	}
	if in.TripDate != nil {
		date, err := ParseTripDate(*in.TripDate)
		if err != nil {
			return models.Trip{}, fmt.Errorf("parse trip_date: %w", err)
		}
		trip.TripDate = date
	}
	if in.InvoiceNo != nil {
		trip.InvoiceNo = in.InvoiceNo
	}
	if in.InvoiceAmount != nil {
		trip.InvoiceAmount = in.InvoiceAmount
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&trip).Error; err != nil {
			return err
		}
		if in.Stops == nil {
			return nil
		}
		if err := tx.Unscoped().Where("trip_id = ?", trip.ID).Delete(&models.TripStop{}).Error; err != nil {
			return err
		}
		for _, st := range *in.Stops {
			stop := models.TripStop{
				TripID:      trip.ID,
				Destination: st.Destination,
				Seq:         st.Seq,
				Notes:       st.Notes,
			}
			if err := tx.Create(&stop).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Trip{}, err
	}
	return s.GetTrip(trip.ID)
}

// DeleteTrip removes the trip and its stops. Deletion is unconditional.
func (s *Store) DeleteTrip(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("trip_id = ?", id).Delete(&models.TripStop{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Trip{}, id).Error
	})
}

// UpdateTripStatus is the narrow single-field mutation used by the driver
// status flow.
func (s *Store) UpdateTripStatus(id uint, status string) (models.Trip, error) {
	var trip models.Trip
	if err := s.db.First(&trip, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Trip{}, ErrTripNotFound
		}
		return models.Trip{}, err
	}
	trip.Status = status
	if err := s.db.Save(&trip).Error; err != nil {
		return models.Trip{}, err
	}
	return s.GetTrip(trip.ID)
}

// AttachTripCMR stores a document reference against the trip. The reference
// is trusted to have been produced by the file-copy collaborator.
func (s *Store) AttachTripCMR(id uint, ref string) (models.Trip, error) {
	var trip models.Trip
	if err := s.db.First(&trip, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Trip{}, ErrTripNotFound
		}
		return models.Trip{}, err
	}
	trip.CMRDocument = &ref
	if err := s.db.Save(&trip).Error; err != nil {
		return models.Trip{}, err
	}
	return s.GetTrip(trip.ID)
}

// GetTrip loads a trip with its stops in seq order.
func (s *Store) GetTrip(id uint) (models.Trip, error) {
	var trip models.Trip
	err := s.db.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&trip, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Trip{}, ErrTripNotFound
	}
	return trip, err
}

// VehicleTripCount counts trips referencing a vehicle; the delete guard
// consults it.
func (s *Store) VehicleTripCount(vehicleID uint) (int64, error) {
	var n int64
	err := s.db.Model(&models.Trip{}).Where("vehicle_id = ?", vehicleID).Count(&n).Error
	return n, err
}
