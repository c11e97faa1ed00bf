package server

import (
	"errors"
	"net/http"

	"mediastream/internal/api"
)

// writeMiddlewareError normalises middleware error responses to the API JSON shape.
func writeMiddlewareError(w http.ResponseWriter, status int, message string) {
	api.WriteError(w, status, errors.New(message))
}
