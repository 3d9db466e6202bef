package adapter

import (
	"time"

	"gorm.io/gorm"

	"fleet_tracker/internal/models"
	"fleet_tracker/internal/scope"
)

// efficiency is the completed-vs-total percentage over a trip window; 0
// when the window is empty.
func efficiency(completed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// dashboard aggregates the manager/admin view: open trips, accessible
// vehicles, today's mileage, recent activity and the 30-day efficiency.
func (a *Adapter) dashboard(caller models.User) Response {
	if caller.Role == models.RoleDriver {
		return forbidden("drivers use the driver dashboard")
	}

	db := a.store.DB()
	driverIDs, err := scope.TripDrivers(db, caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}
	vehicleIDs, err := scope.VehicleIDs(db, caller.Role, caller.ID)
	if err != nil {
		return storageError(err)
	}

	var openTrips int64
	if err := tripQuery(db, driverIDs).Where("status <> ?", models.TripCompleted).Count(&openTrips).Error; err != nil {
		return storageError(err)
	}

	vehiclesQ := db.Model(&models.Vehicle{})
	if vehicleIDs != nil {
		vehiclesQ = vehiclesQ.Where("id IN ?", vehicleIDs)
	}
	var vehicleCount int64
	if err := vehiclesQ.Count(&vehicleCount).Error; err != nil {
		return storageError(err)
	}

	todayMileage, err := a.mileageSince(driverIDs, startOfToday(), startOfToday().AddDate(0, 0, 1))
	if err != nil {
		return storageError(err)
	}

	recent, err := a.recentTrips(driverIDs)
	if err != nil {
		return storageError(err)
	}

	var vehicles []models.Vehicle
	vq := db.Model(&models.Vehicle{}).Order("id DESC").Limit(dashboardPageSize)
	if vehicleIDs != nil {
		vq = vq.Where("id IN ?", vehicleIDs)
	}
	if err := vq.Find(&vehicles).Error; err != nil {
		return storageError(err)
	}
	vehicleViews := make([]H, 0, len(vehicles))
	for _, v := range vehicles {
		vehicleViews = append(vehicleViews, vehicleView(v))
	}

	completed, total, err := a.windowCounts(driverIDs, time.Now().AddDate(0, 0, -30))
	if err != nil {
		return storageError(err)
	}

	return ok(H{
		"open_trips":    openTrips,
		"vehicle_count": vehicleCount,
		"today_mileage": todayMileage,
		"recent_trips":  recent,
		"vehicles":      vehicleViews,
		"efficiency":    efficiency(completed, total),
	})
}

// driverDashboard is the self-scoped variant: always the caller's own
// trips, whatever their role.
func (a *Adapter) driverDashboard(caller models.User) Response {
	own := []uint{caller.ID}
	db := a.store.DB()

	var completedCount int64
	if err := tripQuery(db, own).Where("status = ?", models.TripCompleted).Count(&completedCount).Error; err != nil {
		return storageError(err)
	}
	var pendingCount int64
	if err := tripQuery(db, own).Where("status <> ?", models.TripCompleted).Count(&pendingCount).Error; err != nil {
		return storageError(err)
	}

	todayMileage, err := a.mileageSince(own, startOfToday(), startOfToday().AddDate(0, 0, 1))
	if err != nil {
		return storageError(err)
	}

	recent, err := a.recentTrips(own)
	if err != nil {
		return storageError(err)
	}

	completed, total, err := a.windowCounts(own, time.Now().AddDate(0, 0, -30))
	if err != nil {
		return storageError(err)
	}

	return ok(H{
		"completed_trips": completedCount,
		"pending_trips":   pendingCount,
		"today_mileage":   todayMileage,
		"recent_trips":    recent,
		"efficiency":      efficiency(completed, total),
	})
}

func (a *Adapter) mileageSince(driverIDs []uint, from, to time.Time) (float64, error) {
	var sum *float64
	err := tripQuery(a.store.DB(), driverIDs).
		Where("trip_date >= ? AND trip_date < ?", from, to).
		Select("SUM(mileage)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (a *Adapter) recentTrips(driverIDs []uint) ([]H, error) {
	var trips []models.Trip
	err := tripQuery(a.store.DB(), driverIDs).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Order("id DESC").
		Limit(dashboardPageSize).
		Find(&trips).Error
	if err != nil {
		return nil, err
	}
	return a.assembleTrips(trips)
}

func (a *Adapter) windowCounts(driverIDs []uint, since time.Time) (completed, total int64, err error) {
	if err = tripQuery(a.store.DB(), driverIDs).Where("trip_date >= ?", since).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = tripQuery(a.store.DB(), driverIDs).
		Where("trip_date >= ? AND status = ?", since, models.TripCompleted).
		Count(&completed).Error; err != nil {
		return 0, 0, err
	}
	return completed, total, nil
}
