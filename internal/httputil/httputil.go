package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON sends v as a JSON response body.
func WriteJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		panic(err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func Error(rw http.ResponseWriter, status int, message string) {
	WriteJSON(rw, status, errorBody{Error: message})
}

func NotFound(rw http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}

	Error(rw, http.StatusNotFound, message)
}

func BadRequest(rw http.ResponseWriter, message string) {
	Error(rw, http.StatusBadRequest, message)
}

func Forbidden(rw http.ResponseWriter, message string) {
	Error(rw, http.StatusForbidden, message)
}

func InternalError(rw http.ResponseWriter, message string) {
	Error(rw, http.StatusInternalServerError, message)
}
