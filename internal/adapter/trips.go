package adapter

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"fleet_tracker/internal/models"
	"fleet_tracker/internal/scope"
	"fleet_tracker/internal/store"
)

// tripQuery applies the caller's trip scope. A nil id set means
// unrestricted; an empty set matches nothing.
func tripQuery(db *gorm.DB, driverIDs []uint) *gorm.DB {
	q := db.Model(&models.Trip{})
	if driverIDs != nil {
		q = q.Where("driver_id IN ?", driverIDs)
	}
	return q
}

func (a *Adapter) listTrips(caller models.User, page int) Response {
	if page < 1 {
		page = 1
	}
	driverIDs, err := scope.TripDrivers(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}

	var total int64
	if err := tripQuery(a.store.DB(), driverIDs).Count(&total).Error; err != nil {
		return storageError(err)
	}

	var trips []models.Trip
	err = tripQuery(a.store.DB(), driverIDs).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Order("id DESC").
		Limit(TripPageSize).
		Offset((page - 1) * TripPageSize).
		Find(&trips).Error
	if err != nil {
		return storageError(err)
	}

	views, err := a.assembleTrips(trips)
	if err != nil {
		return storageError(err)
	}

	lastPage := int((total + TripPageSize - 1) / TripPageSize)
	return ok(H{
		"data":      views,
		"page":      page,
		"per_page":  TripPageSize,
		"total":     total,
		"last_page": lastPage,
	})
}

func (a *Adapter) getTrip(caller models.User, id uint) Response {
	trip, err := a.store.GetTrip(id)
	if errors.Is(err, store.ErrTripNotFound) {
		return notFound("trip not found")
	}
	if err != nil {
		return storageError(err)
	}

	driverIDs, err := scope.TripDrivers(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(driverIDs, trip.DriverID) {
		return forbidden("trip is outside your scope")
	}

	view, err := a.assembleTrip(trip)
	if err != nil {
		return storageError(err)
	}
	return ok(H{"trip": view})
}

// tripForm serves the create screen's pickers: the drivers and vehicles the
// caller may assign.
func (a *Adapter) tripForm(caller models.User) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers cannot create trips")
	}

	driverIDs, err := scope.TripDrivers(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	driversQ := a.store.DB().Where("role = ?", models.RoleDriver)
	if driverIDs != nil {
		driversQ = driversQ.Where("id IN ?", driverIDs)
	}
	var drivers []models.User
	if err := driversQ.Order("name ASC").Find(&drivers).Error; err != nil {
		return storageError(err)
	}

	vehicleIDs, err := scope.VehicleIDs(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	vehiclesQ := a.store.DB().Model(&models.Vehicle{}).Where("active = ?", true)
	if vehicleIDs != nil {
		vehiclesQ = vehiclesQ.Where("id IN ?", vehicleIDs)
	}
	var vehicles []models.Vehicle
	if err := vehiclesQ.Order("id ASC").Find(&vehicles).Error; err != nil {
		return storageError(err)
	}

	driverViews := make([]H, 0, len(drivers))
	for _, d := range drivers {
		driverViews = append(driverViews, userView(d))
	}
	vehicleViews := make([]H, 0, len(vehicles))
	for _, v := range vehicles {
		vehicleViews = append(vehicleViews, vehicleView(v))
	}
	return ok(H{"drivers": driverViews, "vehicles": vehicleViews})
}

func (a *Adapter) createTrip(caller models.User, body []byte) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers cannot create trips")
	}

	var input store.TripCreate
	if err := json.Unmarshal(body, &input); err != nil {
		return unprocessable("invalid trip payload", nil)
	}
	if missing := input.MissingFields(); len(missing) > 0 {
		return unprocessable("validation failed", missing)
	}
	if _, err := store.ParseTripDate(input.TripDate); err != nil {
		return unprocessable("validation failed", []string{"trip_date"})
	}
	if err := a.store.ValidateTripRefs(input.VehicleID, input.DriverID); err != nil {
		if errors.Is(err, store.ErrMissingVehicle) || errors.Is(err, store.ErrMissingDriver) {
			return unprocessable(err.Error(), nil)
		}
		return storageError(err)
	}

	input.CreatedByID = caller.ID
	trip, err := a.store.CreateTrip(input)
	if err != nil {
		return storageError(err)
	}

	view, err := a.assembleTrip(trip)
	if err != nil {
		return storageError(err)
	}
	return created(H{"trip": view})
}

func (a *Adapter) updateTrip(caller models.User, id uint, body []byte) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers cannot edit trips")
	}

	trip, err := a.store.GetTrip(id)
	if errors.Is(err, store.ErrTripNotFound) {
		return notFound("trip not found")
	}
	if err != nil {
		return storageError(err)
	}

	driverIDs, err := scope.TripDrivers(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(driverIDs, trip.DriverID) {
		return forbidden("trip is outside your scope")
	}

	var input store.TripUpdate
	if err := json.Unmarshal(body, &input); err != nil {
		return unprocessable("invalid trip payload", nil)
	}

	// Validate the references the trip will hold after the partial merge,
	// the same way the create path does.
	vehicleID, driverID := trip.VehicleID, trip.DriverID
	if input.VehicleID != nil {
		vehicleID = *input.VehicleID
	}
	if input.DriverID != nil {
		driverID = *input.DriverID
	}
	if err := a.store.ValidateTripRefs(vehicleID, driverID); err != nil {
		if errors.Is(err, store.ErrMissingVehicle) || errors.Is(err, store.ErrMissingDriver) {
			return unprocessable(err.Error(), nil)
		}
		return storageError(err)
	}
	// Reassignment must land inside the caller's scope too.
	if !scope.ContainsID(driverIDs, driverID) {
		return forbidden("driver is outside your scope")
	}

	updated, err := a.store.UpdateTrip(id, input)
	if err != nil {
		return storageError(err)
	}

	view, err := a.assembleTrip(updated)
	if err != nil {
		return storageError(err)
	}
	return ok(H{"trip": view})
}

func (a *Adapter) deleteTrip(caller models.User, id uint) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers cannot delete trips")
	}

	trip, err := a.store.GetTrip(id)
	if errors.Is(err, store.ErrTripNotFound) {
		return notFound("trip not found")
	}
	if err != nil {
		return storageError(err)
	}

	driverIDs, err := scope.TripDrivers(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(driverIDs, trip.DriverID) {
		return forbidden("trip is outside your scope")
	}

	if err := a.store.DeleteTrip(id); err != nil {
		return storageError(err)
	}
	return ok(H{"message": "trip deleted"})
}

func (a *Adapter) updateTripStatus(caller models.User, id uint, body []byte) Response {
	var input struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &input); err != nil || input.Status == "" {
		return unprocessable("status is required", nil)
	}
	status, okStatus := models.NormalizeTripStatus(input.Status)
	if !okStatus {
		return unprocessable("unknown status", nil)
	}

	trip, err := a.store.GetTrip(id)
	if errors.Is(err, store.ErrTripNotFound) {
		return notFound("trip not found")
	}
	if err != nil {
		return storageError(err)
	}

	driverIDs, err := scope.TripDrivers(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(driverIDs, trip.DriverID) {
		return forbidden("trip is outside your scope")
	}

	updated, err := a.store.UpdateTripStatus(id, status)
	if err != nil {
		return storageError(err)
	}
	view, err := a.assembleTrip(updated)
	if err != nil {
		return storageError(err)
	}
	return ok(H{"trip": view})
}

func (a *Adapter) attachCMR(caller models.User, id uint, body []byte) Response {
	var input struct {
		CMRDocument string `json:"cmr_document"`
	}
	if err := json.Unmarshal(body, &input); err != nil || input.CMRDocument == "" {
		return unprocessable("cmr_document is required", nil)
	}

	trip, err := a.store.GetTrip(id)
	if errors.Is(err, store.ErrTripNotFound) {
		return notFound("trip not found")
	}
	if err != nil {
		return storageError(err)
	}

	driverIDs, err := scope.TripDrivers(a.store.DB(), caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	if !scope.ContainsID(driverIDs, trip.DriverID) {
		return forbidden("trip is outside your scope")
	}

	updated, err := a.store.AttachTripCMR(id, input.CMRDocument)
	if err != nil {
		return storageError(err)
	}
	view, err := a.assembleTrip(updated)
	if err != nil {
		return storageError(err)
	}
	return ok(H{"trip": view})
}
