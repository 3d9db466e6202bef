package models

import "gorm.io/gorm"

type Vehicle struct {
	gorm.Model
	RegistrationNo *string `json:"registration_no" gorm:"unique"`
	Notes          string  `json:"notes"`
	Active         bool    `json:"active" gorm:"default:true"`

	// Every vehicle belongs to a manager's pool.
	ManagerID uint `json:"manager_id" gorm:"index;not null"`
}
