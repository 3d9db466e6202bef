package adapter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestTable(t *testing.T) {
	cases := []struct {
		method string
		path   string
		op     Op
		id     uint
	}{
		{"POST", "/login", OpLogin, 0},
		{"POST", "/logout", OpLogout, 0},
		{"GET", "/user", OpMe, 0},
		{"GET", "/trips", OpListTrips, 0},
		{"GET", "/trips/create", OpTripForm, 0},
		{"GET", "/trips/17", OpGetTrip, 17},
		{"POST", "/trips", OpCreateTrip, 0},
		{"PUT", "/trips/17", OpUpdateTrip, 17},
		{"DELETE", "/trips/17", OpDeleteTrip, 17},
		{"POST", "/driver/trips/17/status", OpUpdateTripStatus, 17},
		{"POST", "/driver/trips/17/cmr", OpAttachCMR, 17},
		{"POST", "/trips/17/cmr", OpAttachCMR, 17},
		{"GET", "/vehicles", OpListVehicles, 0},
		{"GET", "/vehicles/3", OpGetVehicle, 3},
		{"POST", "/vehicles", OpCreateVehicle, 0},
		{"PUT", "/vehicles/3", OpUpdateVehicle, 3},
		{"DELETE", "/vehicles/3", OpDeleteVehicle, 3},
		{"GET", "/users", OpListUsers, 0},
		{"POST", "/users", OpCreateUser, 0},
		{"PUT", "/users/9", OpUpdateUser, 9},
		{"DELETE", "/users/9", OpDeleteUser, 9},
		{"GET", "/dashboard", OpDashboard, 0},
		{"GET", "/driver/dashboard", OpDriverDashboard, 0},
		{"GET", "/driver/live-positions", OpLivePositions, 0},
		{"POST", "/driver/update-location", OpUpdateLocation, 0},
	}

	for _, tc := range cases {
		req, err := ParseRequest(tc.method, tc.path, nil, nil)
		require.NoError(t, err, "%s %s", tc.method, tc.path)
		require.Equal(t, tc.op, req.Op, "%s %s", tc.method, tc.path)
		require.Equal(t, tc.id, req.ID, "%s %s", tc.method, tc.path)
	}
}

func TestParseRequestRejectsUnknown(t *testing.T) {
	for _, c := range []struct{ method, path string }{
		{"GET", "/login"},
		{"POST", "/dashboard"},
		{"GET", "/nope"},
		{"PATCH", "/trips/1"},
		{"GET", "/trips/abc"},
		{"POST", "/users/9"},
	} {
		_, err := ParseRequest(c.method, c.path, nil, nil)
		require.ErrorIs(t, err, ErrUnknownOperation, "%s %s", c.method, c.path)
	}
}

func TestParseRequestPage(t *testing.T) {
	req, err := ParseRequest("GET", "/trips", url.Values{"page": []string{"3"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, req.Page)

	req, err = ParseRequest("GET", "/trips", url.Values{"page": []string{"-1"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, req.Page)

	req, err = ParseRequest("GET", "/trips", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, req.Page)
}
