package adapter

import (
	"encoding/json"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fleet_tracker/internal/models"
)

// User administration is reserved for admin/ceo accounts.
func canAdministerUsers(caller models.User) bool {
	return caller.Role.Unrestricted()
}

func (a *Adapter) listUsers(caller models.User) Response {
	if !canAdministerUsers(caller) {
		return forbidden("user administration requires an admin account")
	}

	var users []models.User
	if err := a.store.DB().Order("id ASC").Find(&users).Error; err != nil {
		return storageError(err)
	}

	views := make([]H, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	return ok(H{"data": views})
}

func (a *Adapter) createUser(caller models.User, body []byte) Response {
	if !canAdministerUsers(caller) {
		return forbidden("user administration requires an admin account")
	}

	var input struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Role      string `json:"role"`
		ManagerID *uint  `json:"manager_id"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		return unprocessable("invalid user payload", nil)
	}

	var missing []string
	if input.Name == "" {
		missing = append(missing, "name")
	}
	if input.Email == "" {
		missing = append(missing, "email")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return unprocessable("validation failed", missing)
	}

	role, err := models.ParseRole(input.Role)
	if err != nil {
		return unprocessable("invalid role", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return storageError(err)
	}

	user := models.User{
		Name:      input.Name,
		Email:     input.Email,
		Password:  string(hash),
		Role:      role,
		ManagerID: input.ManagerID,
	}
	if err := a.store.DB().Create(&user).Error; err != nil {
		return storageError(err)
	}
	return created(H{"user": userView(user)})
}

func (a *Adapter) updateUser(caller models.User, id uint, body []byte) Response {
	if !canAdministerUsers(caller) {
		return forbidden("user administration requires an admin account")
	}

	var user models.User
	if err := a.store.DB().First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("user not found")
		}
		return storageError(err)
	}

	var input struct {
		Name      *string `json:"name"`
		Email     *string `json:"email"`
		Password  *string `json:"password"`
		Role      *string `json:"role"`
		ManagerID *uint   `json:"manager_id"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		return unprocessable("invalid user payload", nil)
	}

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	// An empty or absent password leaves the stored one untouched.
	if input.Password != nil && *input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return storageError(err)
		}
		user.Password = string(hash)
	}
	if input.Role != nil {
		role, err := models.ParseRole(*input.Role)
		if err != nil {
			return unprocessable("invalid role", nil)
		}
		user.Role = role
	}
	if input.ManagerID != nil {
		user.ManagerID = input.ManagerID
	}

	if err := a.store.DB().Save(&user).Error; err != nil {
		return storageError(err)
	}
	return ok(H{"user": userView(user)})
}

// deleteUser removes the row outright. Trips pointing at the user are left
// in place; no cascade runs at this layer.
func (a *Adapter) deleteUser(caller models.User, id uint) Response {
	if !canAdministerUsers(caller) {
		return forbidden("user administration requires an admin account")
	}

	var user models.User
	if err := a.store.DB().First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("user not found")
		}
		return storageError(err)
	}

	if err := a.store.DB().Unscoped().Delete(&models.User{}, id).Error; err != nil {
		return storageError(err)
	}
	return ok(H{"message": "user deleted"})
}
