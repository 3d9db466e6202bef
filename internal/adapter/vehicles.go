package adapter

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"fleet_tracker/internal/models"
	"fleet_tracker/internal/scope"
)

func (a *Adapter) listVehicles(caller models.User) Response {
	vehicleIDs, err := scope.VehicleIDs(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}

	q := a.store.DB().Model(&models.Vehicle{})
	if vehicleIDs != nil {
		q = q.Where("id IN ?", vehicleIDs)
	}
	var vehicles []models.Vehicle
	if err := q.Order("id ASC").Find(&vehicles).Error; err != nil {
		return storageError(err)
	}

	views := make([]H, 0, len(vehicles))
	for _, v := range vehicles {
		views = append(views, vehicleView(v))
	}
	return ok(H{"data": views})
}

func (a *Adapter) getVehicle(caller models.User, id uint) Response {
	var vehicle models.Vehicle
	if err := a.store.DB().First(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("vehicle not found")
		}
		return storageError(err)
	}

	vehicleIDs, err := scope.VehicleIDs(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(vehicleIDs, vehicle.ID) {
		return forbidden("vehicle is outside your scope")
	}
	return ok(H{"vehicle": vehicleView(vehicle)})
}

func (a *Adapter) createVehicle(caller models.User, body []byte) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers cannot create vehicles")
	}

	var input struct {
		RegistrationNo *string `json:"registration_no"`
		Notes          string  `json:"notes"`
		Active         *bool   `json:"active"`
		ManagerID      uint    `json:"manager_id"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		return unprocessable("invalid vehicle payload", nil)
	}

	// A manager always owns what they create; admins must name the owner.
	managerID := input.ManagerID
	if caller.Role == models.RoleManager {
		managerID = caller.ID
	}
	if managerID == 0 {
		return unprocessable("validation failed", []string{"manager_id"})
	}

	vehicle := models.Vehicle{
		RegistrationNo: input.RegistrationNo,
		Notes:          input.Notes,
		Active:         true,
		ManagerID:      managerID,
	}
	if input.Active != nil {
		vehicle.Active = *input.Active
	}
	if err := a.store.DB().Create(&vehicle).Error; err != nil {
		return storageError(err)
	}
	return created(H{"vehicle": vehicleView(vehicle)})
}

func (a *Adapter) updateVehicle(caller models.User, id uint, body []byte) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers cannot edit vehicles")
	}

	var vehicle models.Vehicle
	if err := a.store.DB().First(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("vehicle not found")
		}
		return storageError(err)
	}

	vehicleIDs, err := scope.VehicleIDs(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(vehicleIDs, vehicle.ID) {
		return forbidden("vehicle is outside your scope")
	}

	var input struct {
		RegistrationNo *string `json:"registration_no"`
		Notes          *string `json:"notes"`
		Active         *bool   `json:"active"`
		ManagerID      *uint   `json:"manager_id"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		return unprocessable("invalid vehicle payload", nil)
	}

	if input.RegistrationNo != nil {
		vehicle.RegistrationNo = input.RegistrationNo
	}
	if input.Notes != nil {
		vehicle.Notes = *input.Notes
	}
	if input.Active != nil {
		vehicle.Active = *input.Active
	}
	if input.ManagerID != nil && caller.Role != models.RoleManager {
		vehicle.ManagerID = *input.ManagerID
	}

	if err := a.store.DB().Save(&vehicle).Error; err != nil {
		return storageError(err)
	}
	return ok(H{"vehicle": vehicleView(vehicle)})
}

// deleteVehicle enforces the referencing-trips guard: a vehicle with any
// trips cannot be removed.
func (a *Adapter) deleteVehicle(caller models.User, id uint) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers cannot delete vehicles")
	}

	var vehicle models.Vehicle
	if err := a.store.DB().First(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("vehicle not found")
		}
		return storageError(err)
	}

	vehicleIDs, err := scope.VehicleIDs(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(vehicleIDs, vehicle.ID) {
		return forbidden("vehicle is outside your scope")
	}

	n, err := a.store.VehicleTripCount(id)
	if err != nil {
		return storageError(err)
	}
	if n > 0 {
		return unprocessable("vehicle has trips and cannot be deleted", nil)
	}

	if err := a.store.DB().Unscoped().Delete(&models.Vehicle{}, id).Error; err != nil {
		return storageError(err)
	}
	return ok(H{"message": "vehicle deleted"})
}
