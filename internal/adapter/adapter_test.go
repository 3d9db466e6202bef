package adapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleet_tracker/internal/middleware"
	"fleet_tracker/internal/models"
	"fleet_tracker/internal/store"
)

const seededPassword = "fleet1234"

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "fleet.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, middleware.NewTokenCodec("test-secret"))
}

func tokenFor(t *testing.T, a *Adapter, userID uint, role models.Role) string {
	t.Helper()
	token, err := a.tokens.Mint(userID, role)
	require.NoError(t, err)
	return token
}

func body(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestLoginRoundTrip(t *testing.T) {
	a := newTestAdapter(t)

	resp := a.Dispatch(Request{Op: OpLogin, Body: body(t, H{
		"email":    "driver1@fleet.local",
		"password": seededPassword,
	})})
	require.Equal(t, http.StatusOK, resp.Status)

	out := resp.Body.(H)
	token := out["token"].(string)
	require.NotEmpty(t, token)

	userID, role, err := a.tokens.Parse(token)
	require.NoError(t, err)
	require.Equal(t, uint(4), userID, "the seeded driver id must be recoverable from the token")
	require.Equal(t, models.RoleDriver, role)

	user := out["user"].(H)
	require.Equal(t, "driver1@fleet.local", user["email"])
	require.NotContains(t, user, "password")
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestAdapter(t)

	resp := a.Dispatch(Request{Op: OpLogin, Body: body(t, H{
		"email":    "driver1@fleet.local",
		"password": "wrong",
	})})
	require.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = a.Dispatch(Request{Op: OpLogin, Body: body(t, H{
		"email":    "nobody@fleet.local",
		"password": seededPassword,
	})})
	require.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	a := newTestAdapter(t)

	for _, op := range []Op{OpMe, OpListTrips, OpDashboard, OpListVehicles} {
		resp := a.Dispatch(Request{Op: op})
		require.Equal(t, http.StatusUnauthorized, resp.Status, "op %d", op)
	}

	resp := a.Dispatch(Request{Op: OpMe, Token: "garbage"})
	require.Equal(t, http.StatusUnauthorized, resp.Status)
}

func listTripIDs(t *testing.T, a *Adapter, token string, page int) ([]uint, H) {
	t.Helper()
	resp := a.Dispatch(Request{Op: OpListTrips, Token: token, Page: page})
	require.Equal(t, http.StatusOK, resp.Status)
	out := resp.Body.(H)
	var ids []uint
	for _, v := range out["data"].([]H) {
		ids = append(ids, v["id"].(uint))
	}
	return ids, out
}

func TestListTripsScopeContainment(t *testing.T) {
	a := newTestAdapter(t)

	// Seeded driver 4 owns only trip 1.
	ids, _ := listTripIDs(t, a, tokenFor(t, a, 4, models.RoleDriver), 1)
	require.Equal(t, []uint{1}, ids)

	// Seeded manager 3 supervises drivers 4 and 5 → trips 1 and 2.
	ids, _ = listTripIDs(t, a, tokenFor(t, a, 3, models.RoleManager), 1)
	require.ElementsMatch(t, []uint{1, 2}, ids)

	// Admin sees everything.
	ids, _ = listTripIDs(t, a, tokenFor(t, a, 2, models.RoleAdmin), 1)
	require.ElementsMatch(t, []uint{1, 2, 3}, ids)
}

func TestGetTripForbiddenVsNotFound(t *testing.T) {
	a := newTestAdapter(t)
	driver := tokenFor(t, a, 4, models.RoleDriver)

	// Trip 3 exists but belongs to driver 7.
	resp := a.Dispatch(Request{Op: OpGetTrip, ID: 3, Token: driver})
	require.Equal(t, http.StatusForbidden, resp.Status)

	resp = a.Dispatch(Request{Op: OpGetTrip, ID: 9999, Token: driver})
	require.Equal(t, http.StatusNotFound, resp.Status)

	resp = a.Dispatch(Request{Op: OpGetTrip, ID: 1, Token: driver})
	require.Equal(t, http.StatusOK, resp.Status)
	trip := resp.Body.(H)["trip"].(H)
	require.Equal(t, "Janis Berzins", trip["driver_name"])
	require.Equal(t, "AB-1234", *trip["vehicle_registration"].(*string))
}

func TestCreateTripValidation(t *testing.T) {
	a := newTestAdapter(t)
	manager := tokenFor(t, a, 3, models.RoleManager)

	resp := a.Dispatch(Request{Op: OpCreateTrip, Token: manager, Body: body(t, H{
		"trip_no": "TR-5000",
	})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	fields := resp.Body.(H)["fields"].([]string)
	require.Contains(t, fields, "vehicle_id")
	require.Contains(t, fields, "driver_id")
	require.Contains(t, fields, "from_location")
	require.Contains(t, fields, "to_location")
	require.Contains(t, fields, "trip_date")

	// Missing references are rejected before insertion.
	resp = a.Dispatch(Request{Op: OpCreateTrip, Token: manager, Body: body(t, store.TripCreate{
		TripNo: "TR-5000", VehicleID: 9999, DriverID: 4,
		FromLocation: "Riga", ToLocation: "Tallinn", TripDate: "2026-08-30",
	})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	// Drivers cannot create trips at all.
	resp = a.Dispatch(Request{Op: OpCreateTrip, Token: tokenFor(t, a, 4, models.RoleDriver), Body: body(t, H{})})
	require.Equal(t, http.StatusForbidden, resp.Status)
}

func TestCreateTripWithStops(t *testing.T) {
	a := newTestAdapter(t)
	manager := tokenFor(t, a, 3, models.RoleManager)

	resp := a.Dispatch(Request{Op: OpCreateTrip, Token: manager, Body: body(t, store.TripCreate{
		TripNo: "TR-5001", VehicleID: 1, DriverID: 4,
		FromLocation: "Riga", ToLocation: "Vilnius", TripDate: "2026-09-01",
		Stops: []store.StopInput{
			{Destination: "Bauska", Seq: 1},
			{Destination: "Panevezys", Seq: 2},
		},
	})})
	require.Equal(t, http.StatusCreated, resp.Status)

	trip := resp.Body.(H)["trip"].(H)
	stops := trip["stops"].([]H)
	require.Len(t, stops, 2)
	require.Equal(t, "Bauska", stops[0]["destination"])
	require.Equal(t, "Panevezys", stops[1]["destination"])
	require.Equal(t, "Janis Berzins", trip["driver_name"])
}

func TestUpdateTripStopReplace(t *testing.T) {
	a := newTestAdapter(t)
	manager := tokenFor(t, a, 3, models.RoleManager)

	// Seeded trip 1 starts with stops Kaunas, Poznan.
	resp := a.Dispatch(Request{Op: OpUpdateTrip, ID: 1, Token: manager, Body: body(t, H{
		"stops": []H{
			{"destination": "Jelgava", "seq": 1},
		},
	})})
	require.Equal(t, http.StatusOK, resp.Status)

	stops := resp.Body.(H)["trip"].(H)["stops"].([]H)
	require.Len(t, stops, 1)
	require.Equal(t, "Jelgava", stops[0]["destination"])
}

func TestUpdateTripOutOfScope(t *testing.T) {
	a := newTestAdapter(t)
	manager := tokenFor(t, a, 3, models.RoleManager)

	// Trip 3 belongs to the other manager's driver.
	resp := a.Dispatch(Request{Op: OpUpdateTrip, ID: 3, Token: manager, Body: body(t, H{"way_code": "X"})})
	require.Equal(t, http.StatusForbidden, resp.Status)
}

func TestUpdateTripDanglingRefsRejected(t *testing.T) {
	a := newTestAdapter(t)
	manager := tokenFor(t, a, 3, models.RoleManager)

	resp := a.Dispatch(Request{Op: OpUpdateTrip, ID: 1, Token: manager, Body: body(t, H{"vehicle_id": 9999})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	resp = a.Dispatch(Request{Op: OpUpdateTrip, ID: 1, Token: manager, Body: body(t, H{"driver_id": 9999})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	// Nothing persisted.
	trip, err := a.store.GetTrip(1)
	require.NoError(t, err)
	require.Equal(t, uint(1), trip.VehicleID)
	require.Equal(t, uint(4), trip.DriverID)
}

func TestUpdateTripReassignOutsideScope(t *testing.T) {
	a := newTestAdapter(t)

	// Driver 7 reports to the other manager; manager 3 may not hand trips
	// to them.
	resp := a.Dispatch(Request{Op: OpUpdateTrip, ID: 1, Token: tokenFor(t, a, 3, models.RoleManager), Body: body(t, H{"driver_id": 7})})
	require.Equal(t, http.StatusForbidden, resp.Status)

	// An unrestricted role may reassign across managers.
	resp = a.Dispatch(Request{Op: OpUpdateTrip, ID: 1, Token: tokenFor(t, a, 2, models.RoleAdmin), Body: body(t, H{"driver_id": 7})})
	require.Equal(t, http.StatusOK, resp.Status)
}

func TestTripStatusFlow(t *testing.T) {
	a := newTestAdapter(t)
	driver := tokenFor(t, a, 4, models.RoleDriver)

	resp := a.Dispatch(Request{Op: OpUpdateTripStatus, ID: 1, Token: driver, Body: body(t, H{"status": "in_process"})})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, models.TripStarted, resp.Body.(H)["trip"].(H)["status"])

	resp = a.Dispatch(Request{Op: OpUpdateTripStatus, ID: 1, Token: driver, Body: body(t, H{})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	resp = a.Dispatch(Request{Op: OpUpdateTripStatus, ID: 3, Token: driver, Body: body(t, H{"status": "completed"})})
	require.Equal(t, http.StatusForbidden, resp.Status)
}

func TestAttachCMR(t *testing.T) {
	a := newTestAdapter(t)
	driver := tokenFor(t, a, 4, models.RoleDriver)

	resp := a.Dispatch(Request{Op: OpAttachCMR, ID: 1, Token: driver, Body: body(t, H{"cmr_document": "files/cmr/1.pdf"})})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "files/cmr/1.pdf", *resp.Body.(H)["trip"].(H)["cmr_document"].(*string))

	resp = a.Dispatch(Request{Op: OpAttachCMR, ID: 1, Token: driver, Body: body(t, H{})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)
}

func TestVehicleDeleteGuard(t *testing.T) {
	a := newTestAdapter(t)
	admin := tokenFor(t, a, 2, models.RoleAdmin)

	// Vehicle 1 is referenced by seeded trip 1.
	resp := a.Dispatch(Request{Op: OpDeleteVehicle, ID: 1, Token: admin})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	resp = a.Dispatch(Request{Op: OpGetVehicle, ID: 1, Token: admin})
	require.Equal(t, http.StatusOK, resp.Status, "the guarded vehicle must remain intact")

	// A vehicle without trips deletes cleanly.
	resp = a.Dispatch(Request{Op: OpCreateVehicle, Token: admin, Body: body(t, H{
		"registration_no": "ZZ-0001", "manager_id": 3,
	})})
	require.Equal(t, http.StatusCreated, resp.Status)
	id := resp.Body.(H)["vehicle"].(H)["id"].(uint)

	resp = a.Dispatch(Request{Op: OpDeleteVehicle, ID: id, Token: admin})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = a.Dispatch(Request{Op: OpGetVehicle, ID: id, Token: admin})
	require.Equal(t, http.StatusNotFound, resp.Status)
}

func TestVehicleCreateDefaultsOwnerToManager(t *testing.T) {
	a := newTestAdapter(t)

	resp := a.Dispatch(Request{Op: OpCreateVehicle, Token: tokenFor(t, a, 3, models.RoleManager), Body: body(t, H{
		"registration_no": "MM-1111",
	})})
	require.Equal(t, http.StatusCreated, resp.Status)
	require.Equal(t, uint(3), resp.Body.(H)["vehicle"].(H)["manager_id"].(uint))

	// Admins must name the owner.
	resp = a.Dispatch(Request{Op: OpCreateVehicle, Token: tokenFor(t, a, 2, models.RoleAdmin), Body: body(t, H{
		"registration_no": "MM-2222",
	})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)
}

func TestVehicleScope(t *testing.T) {
	a := newTestAdapter(t)

	// Manager 3 owns vehicles 1 and 2; vehicle 3 is manager 6's.
	resp := a.Dispatch(Request{Op: OpListVehicles, Token: tokenFor(t, a, 3, models.RoleManager)})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Len(t, resp.Body.(H)["data"].([]H), 2)

	resp = a.Dispatch(Request{Op: OpGetVehicle, ID: 3, Token: tokenFor(t, a, 3, models.RoleManager)})
	require.Equal(t, http.StatusForbidden, resp.Status)
}

func TestUserAdministration(t *testing.T) {
	a := newTestAdapter(t)
	admin := tokenFor(t, a, 2, models.RoleAdmin)

	// Managers may not administer users.
	resp := a.Dispatch(Request{Op: OpListUsers, Token: tokenFor(t, a, 3, models.RoleManager)})
	require.Equal(t, http.StatusForbidden, resp.Status)

	resp = a.Dispatch(Request{Op: OpCreateUser, Token: admin, Body: body(t, H{
		"name": "New Driver", "email": "new@fleet.local", "password": "secret99", "role": "driver", "manager_id": 3,
	})})
	require.Equal(t, http.StatusCreated, resp.Status)
	id := resp.Body.(H)["user"].(H)["id"].(uint)

	// The new credential works.
	resp = a.Dispatch(Request{Op: OpLogin, Body: body(t, H{"email": "new@fleet.local", "password": "secret99"})})
	require.Equal(t, http.StatusOK, resp.Status)

	// Updating without a password leaves the stored one untouched.
	resp = a.Dispatch(Request{Op: OpUpdateUser, ID: id, Token: admin, Body: body(t, H{"name": "Renamed", "password": ""})})
	require.Equal(t, http.StatusOK, resp.Status)
	resp = a.Dispatch(Request{Op: OpLogin, Body: body(t, H{"email": "new@fleet.local", "password": "secret99"})})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = a.Dispatch(Request{Op: OpCreateUser, Token: admin, Body: body(t, H{
		"name": "Bad", "email": "bad@fleet.local", "password": "x", "role": "pilot",
	})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	resp = a.Dispatch(Request{Op: OpDeleteUser, ID: id, Token: admin})
	require.Equal(t, http.StatusOK, resp.Status)
	resp = a.Dispatch(Request{Op: OpDeleteUser, ID: id, Token: admin})
	require.Equal(t, http.StatusNotFound, resp.Status)
}

func TestPaginationStability(t *testing.T) {
	a := newTestAdapter(t)
	driver := tokenFor(t, a, 4, models.RoleDriver)

	// Driver 4 starts with seeded trip 1; add 24 more for 25 total.
	for i := 0; i < 24; i++ {
		_, err := a.store.CreateTrip(store.TripCreate{
			TripNo: fmt.Sprintf("TR-P%03d", i), VehicleID: 1, DriverID: 4,
			FromLocation: "A", ToLocation: "B", TripDate: "2026-08-01", CreatedByID: 3,
		})
		require.NoError(t, err)
	}

	seen := map[uint]bool{}
	page := 1
	for {
		ids, out := listTripIDs(t, a, driver, page)
		require.Equal(t, 3, out["last_page"].(int))
		require.Equal(t, int64(25), out["total"].(int64))
		for _, id := range ids {
			require.False(t, seen[id], "no duplicates across pages")
			seen[id] = true
		}
		if page >= out["last_page"].(int) {
			break
		}
		page++
	}
	require.Len(t, seen, 25, "concatenated pages reproduce the whole accessible set")
}

func TestDriverDashboardEfficiency(t *testing.T) {
	a := newTestAdapter(t)

	// A fresh driver with no trips: efficiency must be exactly 0.
	resp := a.Dispatch(Request{Op: OpCreateUser, Token: tokenFor(t, a, 2, models.RoleAdmin), Body: body(t, H{
		"name": "Idle", "email": "idle@fleet.local", "password": "x12345", "role": "driver", "manager_id": 3,
	})})
	require.Equal(t, http.StatusCreated, resp.Status)
	idleID := resp.Body.(H)["user"].(H)["id"].(uint)

	resp = a.Dispatch(Request{Op: OpDriverDashboard, Token: tokenFor(t, a, idleID, models.RoleDriver)})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, float64(0), resp.Body.(H)["efficiency"].(float64))

	// 3 trips in the window, 1 completed → 33.33…%.
	today := time.Now().Format("2006-01-02")
	statuses := []string{models.TripCompleted, models.TripStarted, models.TripNotStarted}
	for i, st := range statuses {
		_, err := a.store.CreateTrip(store.TripCreate{
			TripNo: fmt.Sprintf("TR-E%d", i), VehicleID: 1, DriverID: idleID,
			FromLocation: "A", ToLocation: "B", TripDate: today, Status: st, CreatedByID: 3,
		})
		require.NoError(t, err)
	}

	resp = a.Dispatch(Request{Op: OpDriverDashboard, Token: tokenFor(t, a, idleID, models.RoleDriver)})
	require.Equal(t, http.StatusOK, resp.Status)
	out := resp.Body.(H)
	require.InDelta(t, 100.0/3.0, out["efficiency"].(float64), 0.0001)
	require.Equal(t, int64(1), out["completed_trips"].(int64))
	require.Equal(t, int64(2), out["pending_trips"].(int64))
}

func TestDashboardScopedCounts(t *testing.T) {
	a := newTestAdapter(t)

	resp := a.Dispatch(Request{Op: OpDashboard, Token: tokenFor(t, a, 3, models.RoleManager)})
	require.Equal(t, http.StatusOK, resp.Status)
	out := resp.Body.(H)
	// Manager 3's open trips: seeded trip 2 (started). Trip 1 is completed.
	require.Equal(t, int64(1), out["open_trips"].(int64))
	require.Equal(t, int64(2), out["vehicle_count"].(int64))

	resp = a.Dispatch(Request{Op: OpDashboard, Token: tokenFor(t, a, 4, models.RoleDriver)})
	require.Equal(t, http.StatusForbidden, resp.Status)
}

func TestLivePositions(t *testing.T) {
	a := newTestAdapter(t)
	driver := tokenFor(t, a, 4, models.RoleDriver)

	// Both coordinates are required.
	resp := a.Dispatch(Request{Op: OpUpdateLocation, Token: driver, Body: body(t, H{"lat": 56.95})})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	resp = a.Dispatch(Request{Op: OpUpdateLocation, Token: driver, Body: body(t, H{"lat": 56.95, "lng": 24.1})})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = a.Dispatch(Request{Op: OpUpdateLocation, Token: tokenFor(t, a, 5, models.RoleDriver), Body: body(t, H{"lat": 54.68, "lng": 25.28})})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = a.Dispatch(Request{Op: OpLivePositions, Token: driver})
	require.Equal(t, http.StatusOK, resp.Status)
	positions := resp.Body.(H)["positions"].([]H)
	require.Len(t, positions, 2)
	// Most recent fix first.
	require.Equal(t, uint(5), positions[0]["id"].(uint))
	require.Equal(t, uint(4), positions[1]["id"].(uint))
}

func TestMeAndLogout(t *testing.T) {
	a := newTestAdapter(t)
	driver := tokenFor(t, a, 4, models.RoleDriver)

	resp := a.Dispatch(Request{Op: OpMe, Token: driver})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "driver1@fleet.local", resp.Body.(H)["user"].(H)["email"])

	resp = a.Dispatch(Request{Op: OpLogout, Token: driver})
	require.Equal(t, http.StatusOK, resp.Status)
}

func TestTripForm(t *testing.T) {
	a := newTestAdapter(t)

	resp := a.Dispatch(Request{Op: OpTripForm, Token: tokenFor(t, a, 3, models.RoleManager)})
	require.Equal(t, http.StatusOK, resp.Status)
	out := resp.Body.(H)
	require.Len(t, out["drivers"].([]H), 2, "manager picks among direct reports")
	require.Len(t, out["vehicles"].([]H), 2, "manager picks among owned vehicles")

	resp = a.Dispatch(Request{Op: OpTripForm, Token: tokenFor(t, a, 4, models.RoleDriver)})
	require.Equal(t, http.StatusForbidden, resp.Status)
}
