package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// ParseValidateGte parses a required integer query parameter that must be
// greater than or equal to min.
func ParseValidateGte(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, min int64) (int32, bool) {
	return parseValidate(r, w, logger, key, func(v int64) bool { return v >= min })
}

// ParseValidateGt parses a required integer query parameter that must be
// strictly greater than min.
func ParseValidateGt(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, min int64) (int32, bool) {
	return parseValidate(r, w, logger, key, func(v int64) bool { return v > min })
}

func parseValidate(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, valid func(int64) bool) (int32, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("%s url parameter is required", key))
		return 0, false
	}
	intValue, err := strconv.ParseInt(value, 10, 32)
	if err != nil || !valid(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return int32(intValue), true
}
