package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

func newComparisonValidator(valueInClosure int64, compareFn func(argValue, closedValue int64) bool) ParamValidator {
	return func(argValue int64) bool {
		return compareFn(argValue, valueInClosure)
	}
}

// gt returns a ParamValidator that checks if the argument is greater than the value captured in the closure.
func gt(valToCompareAgainst int64) ParamValidator {
	return newComparisonValidator(valToCompareAgainst, func(argValue, closedValue int64) bool {
		return argValue > closedValue
	})
}

// parsePositive parses a base-10 int64 and requires it to be > 0.
func parsePositive(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || !gt(0)(id) {
		return 0, false
	}
	return id, true
}

// RequiredQuery returns the value of a query parameter as sent, responding 400 when it is missing or blank.
func RequiredQuery(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (string, bool) {
	value := r.URL.Query().Get(key)
	if strings.TrimSpace(value) == "" {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("%s url parameter is required", key))
		return "", false
	}
	return value, true
}
