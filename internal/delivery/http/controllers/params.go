package controllers

import (
	"net/http"
	"regexp"

	"smartevents/internal/delivery/http/helpers"
	"smartevents/internal/delivery/http/middleware"

	"github.com/google/uuid"
)

// checkoutIDPattern bounds client-chosen checkout ids.
var checkoutIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// uuidPathValue reads a UUID path parameter, writing 400 when it is missing or malformed.
func uuidPathValue(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.PathValue(name)
	if v == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing "+name)
		return "", false
	}
	if !isUUID(v) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid "+name)
		return "", false
	}
	return v, true
}

// callerID returns the authenticated user, writing 401 when there is none.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}
