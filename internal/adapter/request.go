package adapter

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Op enumerates every logical operation the adapter serves. The set is
// closed: anything the boundary cannot classify is rejected before dispatch.
type Op int

const (
	OpUnknown Op = iota
	OpLogin
	OpLogout
	OpMe
	OpListTrips
	OpGetTrip
	OpTripForm
	OpCreateTrip
	OpUpdateTrip
	OpDeleteTrip
	OpUpdateTripStatus
	OpAttachCMR
	OpListVehicles
	OpGetVehicle
	OpCreateVehicle
	OpUpdateVehicle
	OpDeleteVehicle
	OpListUsers
	OpCreateUser
	OpUpdateUser
	OpDeleteUser
	OpDashboard
	OpDriverDashboard
	OpLivePositions
	OpUpdateLocation
)

// Request is a parsed logical request: a typed operation plus structured
// parameters. The core dispatch never sees path strings.
type Request struct {
	Op    Op
	ID    uint
	Page  int
	Body  []byte
	Token string
}

// ErrUnknownOperation marks a (method, path) pair outside the operation
// table.
var ErrUnknownOperation = errors.New("unknown operation")

// ParseRequest is the single boundary translation from an HTTP-shaped call
// to a typed Request. Both the HTTP bridge and the offline replay
// classification go through it.
func ParseRequest(method, path string, query url.Values, body []byte) (Request, error) {
	method = strings.ToUpper(method)
	parts := splitPath(path)
	req := Request{Body: body, Page: pageOf(query)}

	op, id, ok := classify(method, parts)
	if !ok {
		return Request{}, ErrUnknownOperation
	}
	req.Op = op
	req.ID = id
	return req, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func pageOf(query url.Values) int {
	if query == nil {
		return 1
	}
	if n, err := strconv.Atoi(query.Get("page")); err == nil && n > 0 {
		return n
	}
	return 1
}

func classify(method string, parts []string) (Op, uint, bool) {
	// /driver/... paths collapse onto the same operations; strip the prefix
	// except where the path is driver-specific.
	switch {
	case match(parts, "login"):
		if method == "POST" {
			return OpLogin, 0, true
		}
	case match(parts, "logout"):
		if method == "POST" {
			return OpLogout, 0, true
		}
	case match(parts, "user"):
		if method == "GET" {
			return OpMe, 0, true
		}
	case match(parts, "dashboard"):
		if method == "GET" {
			return OpDashboard, 0, true
		}
	case match(parts, "driver", "dashboard"):
		if method == "GET" {
			return OpDriverDashboard, 0, true
		}
	case match(parts, "driver", "live-positions"):
		if method == "GET" {
			return OpLivePositions, 0, true
		}
	case match(parts, "driver", "update-location"):
		if method == "POST" {
			return OpUpdateLocation, 0, true
		}
	case match(parts, "trips"):
		switch method {
		case "GET":
			return OpListTrips, 0, true
		case "POST":
			return OpCreateTrip, 0, true
		}
	case match(parts, "trips", "create"):
		if method == "GET" {
			return OpTripForm, 0, true
		}
	case match(parts, "trips", "*"):
		id, err := parseID(parts[1])
		if err != nil {
			return OpUnknown, 0, false
		}
		switch method {
		case "GET":
			return OpGetTrip, id, true
		case "PUT":
			return OpUpdateTrip, id, true
		case "DELETE":
			return OpDeleteTrip, id, true
		}
	case match(parts, "trips", "*", "cmr"):
		id, err := parseID(parts[1])
		if err == nil && method == "POST" {
			return OpAttachCMR, id, true
		}
	case match(parts, "driver", "trips", "*", "status"):
		id, err := parseID(parts[2])
		if err == nil && method == "POST" {
			return OpUpdateTripStatus, id, true
		}
	case match(parts, "driver", "trips", "*", "cmr"):
		id, err := parseID(parts[2])
		if err == nil && method == "POST" {
			return OpAttachCMR, id, true
		}
	case match(parts, "vehicles"):
		switch method {
		case "GET":
			return OpListVehicles, 0, true
		case "POST":
			return OpCreateVehicle, 0, true
		}
	case match(parts, "vehicles", "*"):
		id, err := parseID(parts[1])
		if err != nil {
			return OpUnknown, 0, false
		}
		switch method {
		case "GET":
			return OpGetVehicle, id, true
		case "PUT":
			return OpUpdateVehicle, id, true
		case "DELETE":
			return OpDeleteVehicle, id, true
		}
	case match(parts, "users"):
		switch method {
		case "GET":
			return OpListUsers, 0, true
		case "POST":
			return OpCreateUser, 0, true
		}
	case match(parts, "users", "*"):
		id, err := parseID(parts[1])
		if err != nil {
			return OpUnknown, 0, false
		}
		switch method {
		case "PUT":
			return OpUpdateUser, id, true
		case "DELETE":
			return OpDeleteUser, id, true
		}
	}
	return OpUnknown, 0, false
}

// match compares path segments against a pattern where "*" accepts any
// single segment.
func match(parts []string, pattern ...string) bool {
	if len(parts) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && parts[i] != p {
			return false
		}
	}
	return true
}

func parseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}
