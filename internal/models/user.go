package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Password string `json:"-"`
	Role     Role   `json:"role"`

	// ManagerID points at the user's supervisor. Nil for ceo/admin and for
	// managers without one.
	ManagerID *uint `json:"manager_id" gorm:"index"`

	// Last known position fix, nil until the user reports one.
	LastLat   *float64   `json:"last_lat"`
	LastLng   *float64   `json:"last_lng"`
	LastFixAt *time.Time `json:"last_fix_at"`
}
