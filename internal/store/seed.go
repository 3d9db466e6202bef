package store

import (
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleet_tracker/internal/models"
)

// seedPassword is the credential every seeded account starts with.
const seedPassword = "fleet1234"

func uintPtr(v uint) *uint        { return &v }
func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

// Seed materializes the fixed dataset in one transaction with
// insert-or-replace semantics keyed by primary id, so re-running it fully
// replaces the seeded rows without duplicating them.
func (s *Store) Seed() error {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	pw := string(hash)

	users := []models.User{
		{Model: gorm.Model{ID: 1}, Name: "Elena Ozols", Email: "ceo@fleet.local", Password: pw, Role: models.RoleCEO},
		{Model: gorm.Model{ID: 2}, Name: "Rita Kalns", Email: "admin@fleet.local", Password: pw, Role: models.RoleAdmin},
		{Model: gorm.Model{ID: 3}, Name: "Marta Liepa", Email: "manager@fleet.local", Password: pw, Role: models.RoleManager, ManagerID: uintPtr(1)},
		{Model: gorm.Model{ID: 4}, Name: "Janis Berzins", Email: "driver1@fleet.local", Password: pw, Role: models.RoleDriver, ManagerID: uintPtr(3)},
		{Model: gorm.Model{ID: 5}, Name: "Peter Vitols", Email: "driver2@fleet.local", Password: pw, Role: models.RoleDriver, ManagerID: uintPtr(3)},
		{Model: gorm.Model{ID: 6}, Name: "Oskars Celms", Email: "manager2@fleet.local", Password: pw, Role: models.RoleManager, ManagerID: uintPtr(1)},
		{Model: gorm.Model{ID: 7}, Name: "Toms Priede", Email: "driver3@fleet.local", Password: pw, Role: models.RoleDriver, ManagerID: uintPtr(6)},
	}

	vehicles := []models.Vehicle{
		{Model: gorm.Model{ID: 1}, RegistrationNo: strPtr("AB-1234"), Notes: "Volvo FH, tautliner", Active: true, ManagerID: 3},
		{Model: gorm.Model{ID: 2}, RegistrationNo: strPtr("CD-5678"), Notes: "Scania R450", Active: true, ManagerID: 3},
		{Model: gorm.Model{ID: 3}, RegistrationNo: strPtr("EF-9012"), Notes: "MAN TGX, reefer", Active: true, ManagerID: 6},
	}

	today := time.Now().Truncate(24 * time.Hour)
	trips := []models.Trip{
		{
			Model: gorm.Model{ID: 1}, TripNo: "TR-1001",
			VehicleID: 1, DriverID: 4,
			FromLocation: "Riga", ToLocation: "Berlin", WayCode: "LV-DE",
			Status: models.TripCompleted, Mileage: floatPtr(1042),
			TripDate: today.AddDate(0, 0, -2), CreatedByID: 3,
		},
		{
			Model: gorm.Model{ID: 2}, TripNo: "TR-1002",
			VehicleID: 2, DriverID: 5,
			FromLocation: "Riga", ToLocation: "Warsaw", WayCode: "LV-PL",
			Status: models.TripStarted,
			TripDate: today, CreatedByID: 3,
		},
		{
			Model: gorm.Model{ID: 3}, TripNo: "TR-1003",
			VehicleID: 3, DriverID: 7,
			FromLocation: "Vilnius", ToLocation: "Prague",
			Status: models.TripNotStarted,
			TripDate: today.AddDate(0, 0, 1), CreatedByID: 6,
		},
	}

	stops := []models.TripStop{
		{Model: gorm.Model{ID: 1}, TripID: 1, Destination: "Kaunas", Seq: 1},
		{Model: gorm.Model{ID: 2}, TripID: 1, Destination: "Poznan", Seq: 2, Notes: "fuel stop"},
		{Model: gorm.Model{ID: 3}, TripID: 2, Destination: "Siauliai", Seq: 1},
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}
		for _, u := range users {
			if err := tx.Clauses(upsert).Create(&u).Error; err != nil {
				return fmt.Errorf("seed user %d: %w", u.ID, err)
			}
		}
		for _, v := range vehicles {
			if err := tx.Clauses(upsert).Create(&v).Error; err != nil {
				return fmt.Errorf("seed vehicle %d: %w", v.ID, err)
			}
		}
		for _, t := range trips {
			if err := tx.Clauses(upsert).Create(&t).Error; err != nil {
				return fmt.Errorf("seed trip %d: %w", t.ID, err)
			}
		}
		for _, st := range stops {
			if err := tx.Clauses(upsert).Create(&st).Error; err != nil {
				return fmt.Errorf("seed trip stop %d: %w", st.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"users":    len(users),
		"vehicles": len(vehicles),
		"trips":    len(trips),
	}).Info("store seeded")
	return nil
}
