package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"fleet_tracker/internal/adapter"
	"fleet_tracker/internal/store"
)

// ErrUnsupportedReplay marks an entry whose (method, path) falls outside
// the closed replay set. Such entries are quarantined immediately: retrying
// cannot fix them.
var ErrUnsupportedReplay = errors.New("unsupported offline request")

// replay re-applies one queued mutation through the same store primitives
// the live adapter uses, so replayed and live writes cannot drift. Unlike
// the live path it skips field validation (that happened at enqueue time)
// but re-checks that the referenced vehicle and driver still exist, since
// either may have been deleted while the entry waited.
func (q *Queue) replay(e Entry) error {
	req, err := adapter.ParseRequest(e.Method, e.Path, nil, e.Body)
	if err != nil {
		return ErrUnsupportedReplay
	}

	switch req.Op {
	case adapter.OpCreateTrip:
		var in store.TripCreate
		if err := json.Unmarshal(e.Body, &in); err != nil {
			return fmt.Errorf("%w: malformed body", ErrUnsupportedReplay)
		}
		if err := q.st.ValidateTripRefs(in.VehicleID, in.DriverID); err != nil {
			return err
		}
		_, err := q.st.CreateTrip(in)
		return err

	case adapter.OpUpdateTrip:
		var in store.TripUpdate
		if err := json.Unmarshal(e.Body, &in); err != nil {
			return fmt.Errorf("%w: malformed body", ErrUnsupportedReplay)
		}
		trip, err := q.st.GetTrip(req.ID)
		if err != nil {
			return err
		}
		vehicleID, driverID := trip.VehicleID, trip.DriverID
		if in.VehicleID != nil {
			vehicleID = *in.VehicleID
		}
		if in.DriverID != nil {
			driverID = *in.DriverID
		}
		if err := q.st.ValidateTripRefs(vehicleID, driverID); err != nil {
			return err
		}
		_, err = q.st.UpdateTrip(req.ID, in)
		return err

	case adapter.OpDeleteTrip:
		return q.st.DeleteTrip(req.ID)
	}

	return ErrUnsupportedReplay
}
