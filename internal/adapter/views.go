package adapter

import (
	"errors"

	"gorm.io/gorm"

	"fleet_tracker/internal/models"
)

// userView redacts a user row for responses. The password never leaves the
// store.
func userView(u models.User) H {
	return H{
		"id":          u.ID,
		"created_at":  u.CreatedAt,
		"updated_at":  u.UpdatedAt,
		"name":        u.Name,
		"email":       u.Email,
		"role":        u.Role,
		"manager_id":  u.ManagerID,
		"last_lat":    u.LastLat,
		"last_lng":    u.LastLng,
		"last_fix_at": u.LastFixAt,
	}
}

func vehicleView(v models.Vehicle) H {
	return H{
		"id":              v.ID,
		"created_at":      v.CreatedAt,
		"updated_at":      v.UpdatedAt,
		"registration_no": v.RegistrationNo,
		"notes":           v.Notes,
		"active":          v.Active,
		"manager_id":      v.ManagerID,
	}
}

func stopView(s models.TripStop) H {
	return H{
		"id":          s.ID,
		"trip_id":     s.TripID,
		"destination": s.Destination,
		"seq":         s.Seq,
		"notes":       s.Notes,
	}
}

// tripView denormalizes the driver's name/email and the vehicle
// registration for display, the way the list and detail screens expect.
func tripView(t models.Trip, driver *models.User, vehicle *models.Vehicle) H {
	stops := make([]H, 0, len(t.Stops))
	for _, s := range t.Stops {
		stops = append(stops, stopView(s))
	}

	view := H{
		"id":             t.ID,
		"created_at":     t.CreatedAt,
		"updated_at":     t.UpdatedAt,
		"trip_no":        t.TripNo,
		"vehicle_id":     t.VehicleID,
		"driver_id":      t.DriverID,
		"from_location":  t.FromLocation,
		"to_location":    t.ToLocation,
		"way_code":       t.WayCode,
		"status":         t.Status,
		"mileage":        t.Mileage,
		"cmr_document":   t.CMRDocument,
		"driver_notes":   t.DriverNotes,
		"admin_notes":    t.AdminNotes,
		"trip_date":      t.TripDate,
		"invoice_no":     t.InvoiceNo,
		"invoice_amount": t.InvoiceAmount,
		"created_by_id":  t.CreatedByID,
		"stops":          stops,
	}
	if driver != nil {
		view["driver_name"] = driver.Name
		view["driver_email"] = driver.Email
	}
	if vehicle != nil {
		view["vehicle_registration"] = vehicle.RegistrationNo
	}
	return view
}

// assembleTrips batches the driver and vehicle lookups for a page of trips.
func (a *Adapter) assembleTrips(trips []models.Trip) ([]H, error) {
	driverIDs := make([]uint, 0, len(trips))
	vehicleIDs := make([]uint, 0, len(trips))
	for _, t := range trips {
		driverIDs = append(driverIDs, t.DriverID)
		vehicleIDs = append(vehicleIDs, t.VehicleID)
	}

	drivers := map[uint]models.User{}
	if len(driverIDs) > 0 {
		var rows []models.User
		if err := a.store.DB().Where("id IN ?", driverIDs).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, u := range rows {
			drivers[u.ID] = u
		}
	}

	vehicles := map[uint]models.Vehicle{}
	if len(vehicleIDs) > 0 {
		var rows []models.Vehicle
		if err := a.store.DB().Where("id IN ?", vehicleIDs).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, v := range rows {
			vehicles[v.ID] = v
		}
	}

	views := make([]H, 0, len(trips))
	for _, t := range trips {
		var d *models.User
		if u, okD := drivers[t.DriverID]; okD {
			d = &u
		}
		var v *models.Vehicle
		if veh, okV := vehicles[t.VehicleID]; okV {
			v = &veh
		}
		views = append(views, tripView(t, d, v))
	}
	return views, nil
}

// assembleTrip loads the denormalized view for a single trip. A dangling
// driver or vehicle reference degrades to a view without the joined fields.
func (a *Adapter) assembleTrip(t models.Trip) (H, error) {
	var driver *models.User
	var u models.User
	err := a.store.DB().First(&u, t.DriverID).Error
	if err == nil {
		driver = &u
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var vehicle *models.Vehicle
	var v models.Vehicle
	err = a.store.DB().First(&v, t.VehicleID).Error
	if err == nil {
		vehicle = &v
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return tripView(t, driver, vehicle), nil
}
