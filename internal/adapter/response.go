package adapter

import "net/http"

// H is the loose body shape the envelope carries, mirroring what the web
// and mobile clients consume.
type H = map[string]any

// Response is the uniform envelope every operation returns. Expected
// failures are encoded in Status, never raised as errors; only genuinely
// unexpected storage failures escape Dispatch as a 500 envelope.
type Response struct {
	Status int
	Body   any
}

func ok(body any) Response {
	return Response{Status: http.StatusOK, Body: body}
}

func created(body any) Response {
	return Response{Status: http.StatusCreated, Body: body}
}

func unauthorized() Response {
	return Response{Status: http.StatusUnauthorized, Body: H{"error": "unauthorized"}}
}

func forbidden(msg string) Response {
	return Response{Status: http.StatusForbidden, Body: H{"error": msg}}
}

func notFound(msg string) Response {
	return Response{Status: http.StatusNotFound, Body: H{"error": msg}}
}

func unprocessable(msg string, fields []string) Response {
	body := H{"error": msg}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	return Response{Status: http.StatusUnprocessableEntity, Body: body}
}

func storageError(err error) Response {
	return Response{Status: http.StatusInternalServerError, Body: H{"error": err.Error()}}
}
