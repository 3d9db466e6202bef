// Package adapter is the local request router: the single entry point every
// read and write in the application funnels through. It resolves typed
// operations against the embedded store, scoped by the caller's role, and
// answers with a uniform status envelope.
package adapter

import (
	"encoding/json"
	"errors"
	"time"

	logrus "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fleet_tracker/internal/middleware"
	"fleet_tracker/internal/models"
	"fleet_tracker/internal/store"
)

// TripPageSize is the fixed page size for trip listings.
const TripPageSize = 10

// dashboardPageSize bounds the recent-trips and vehicles panels.
const dashboardPageSize = 5

type Adapter struct {
	store  *store.Store
	tokens *middleware.TokenCodec
}

func New(st *store.Store, tokens *middleware.TokenCodec) *Adapter {
	return &Adapter{store: st, tokens: tokens}
}

// Store exposes the underlying store for collaborators that share mutations
// with the adapter (the offline queue's replay path).
func (a *Adapter) Store() *store.Store {
	return a.store
}

// Dispatch serves one logical request. Every operation except login
// requires a resolvable bearer token; absence or an invalid mapping yields
// an unauthorized envelope before the store is touched.
func (a *Adapter) Dispatch(req Request) Response {
	if req.Op == OpLogin {
		return a.login(req)
	}

	caller, resp, authOK := a.authenticate(req.Token)
	if !authOK {
		return resp
	}

	switch req.Op {
	case OpLogout:
		// Client clears its local token; nothing to invalidate server-side.
		return ok(H{"message": "logged out"})
	case OpMe:
		return ok(H{"user": userView(caller)})

	case OpListTrips:
		return a.listTrips(caller, req.Page)
	case OpGetTrip:
		return a.getTrip(caller, req.ID)
	case OpTripForm:
		return a.tripForm(caller)
	case OpCreateTrip:
		return a.createTrip(caller, req.Body)
	case OpUpdateTrip:
		return a.updateTrip(caller, req.ID, req.Body)
	case OpDeleteTrip:
		return a.deleteTrip(caller, req.ID)
	case OpUpdateTripStatus:
		return a.updateTripStatus(caller, req.ID, req.Body)
	case OpAttachCMR:
		return a.attachCMR(caller, req.ID, req.Body)

	case OpListVehicles:
		return a.listVehicles(caller)
	case OpGetVehicle:
		return a.getVehicle(caller, req.ID)
	case OpCreateVehicle:
		return a.createVehicle(caller, req.Body)
	case OpUpdateVehicle:
		return a.updateVehicle(caller, req.ID, req.Body)
	case OpDeleteVehicle:
		return a.deleteVehicle(caller, req.ID)

	case OpListUsers:
		return a.listUsers(caller)
	case OpCreateUser:
		return a.createUser(caller, req.Body)
	case OpUpdateUser:
		return a.updateUser(caller, req.ID, req.Body)
	case OpDeleteUser:
		return a.deleteUser(caller, req.ID)

	case OpDashboard:
		return a.dashboard(caller)
	case OpDriverDashboard:
		return a.driverDashboard(caller)

	case OpLivePositions:
		return a.livePositions(caller)
	case OpUpdateLocation:
		return a.updateLocation(caller, req.Body)
	}

	return notFound("unknown operation")
}

// authenticate resolves the bearer token to a live user row. The role is
// read from the row, not the token, so a role change takes effect on the
// next request.
func (a *Adapter) authenticate(token string) (models.User, Response, bool) {
	userID, _, err := a.tokens.Parse(token)
	if err != nil {
		return models.User{}, unauthorized(), false
	}

	var user models.User
	if err := a.store.DB().First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, unauthorized(), false
		}
		return models.User{}, storageError(err), false
	}
	return user, Response{}, true
}

func (a *Adapter) login(req Request) Response {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(req.Body, &body); err != nil || body.Email == "" || body.Password == "" {
		return unprocessable("email and password are required", nil)
	}

	var user models.User
	if err := a.store.DB().Where("email = ?", body.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return unauthorized()
		}
		return storageError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
		logrus.WithField("email", body.Email).Warn("login: incorrect password")
		return unauthorized()
	}

	token, err := a.tokens.Mint(user.ID, user.Role)
	if err != nil {
		return storageError(err)
	}

	return ok(H{
		"token": token,
		"user":  userView(user),
	})
}

func (a *Adapter) livePositions(caller models.User) Response {
	var users []models.User
	err := a.store.DB().
		Where("last_fix_at IS NOT NULL").
		Order("last_fix_at DESC").
		Find(&users).Error
	if err != nil {
		return storageError(err)
	}

	positions := make([]H, 0, len(users))
	for _, u := range users {
		positions = append(positions, H{
			"id":          u.ID,
			"name":        u.Name,
			"role":        u.Role,
			"last_lat":    u.LastLat,
			"last_lng":    u.LastLng,
			"last_fix_at": u.LastFixAt,
		})
	}
	return ok(H{"positions": positions})
}

func (a *Adapter) updateLocation(caller models.User, body []byte) Response {
	var input struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(body, &input); err != nil || input.Lat == nil || input.Lng == nil {
		return unprocessable("lat and lng are required", nil)
	}

	now := time.Now()
	caller.LastLat = input.Lat
	caller.LastLng = input.Lng
	caller.LastFixAt = &now
	if err := a.store.DB().Save(&caller).Error; err != nil {
		return storageError(err)
	}
	return ok(H{"message": "location updated", "last_fix_at": now})
}
