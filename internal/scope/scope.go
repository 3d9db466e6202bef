// Package scope translates an authenticated identity into a read/write
// boundary. A nil id slice means "unrestricted"; a non-nil empty slice means
// zero accessible rows. Scopes are recomputed per request and never cached,
// because reporting lines can change between calls.
package scope

import (
	"gorm.io/gorm"

	"fleet_tracker/internal/models"
)

// TripDrivers returns the driver ids whose trips the caller may see.
// ceo/admin are unrestricted (nil); a manager sees their direct reports; a
// driver sees only themselves.
func TripDrivers(db *gorm.DB, role models.Role, userID uint) ([]uint, error) {
	switch {
	case role.Unrestricted():
		return nil, nil
	case role == models.RoleManager:
		ids := make([]uint, 0)
		err := db.Model(&models.User{}).
			Where("manager_id = ?", userID).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, err
		}
		return ids, nil
	default:
		return []uint{userID}, nil
	}
}

// VehicleIDs returns the vehicle ids the caller may see. Only managers are
// restricted, to the vehicles they own.
func VehicleIDs(db *gorm.DB, role models.Role, userID uint) ([]uint, error) {
	if role != models.RoleManager {
		return nil, nil
	}
	ids := make([]uint, 0)
	err := db.Model(&models.Vehicle{}).
		Where("manager_id = ?", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ContainsID reports whether id falls inside a computed scope. A nil scope
// admits everything.
func ContainsID(ids []uint, id uint) bool {
	if ids == nil {
		return true
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
