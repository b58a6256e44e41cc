package robinhood

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gridtrader/internal/core"
)

// APIError carries an unexpected HTTP response from the exchange.
type APIError struct {
	Status int
	Detail string
}

func (e APIError) Error() string {
	return fmt.Sprintf("robinhood http error %d: %s", e.Status, e.Detail)
}

type errorBody struct {
	Detail string `json:"detail"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

func classifyHTTPError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			detail = parsed.Detail
		} else if len(parsed.Errors) > 0 && parsed.Errors[0].Detail != "" {
			detail = parsed.Errors[0].Detail
		}
	}
	apiErr := APIError{Status: status, Detail: detail}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Join(apiErr, core.ErrUnauthorized)
	case http.StatusNotFound:
		return errors.Join(apiErr, core.ErrOrderNotFound)
	}
	normalized := strings.ToLower(detail)
	switch {
	case strings.Contains(normalized, "client_order_id") && strings.Contains(normalized, "already"):
		return errors.Join(apiErr, core.ErrDuplicateOrder)
	case status == http.StatusBadRequest && strings.Contains(normalized, "reject"):
		return errors.Join(apiErr, core.ErrOrderRejected)
	}
	return apiErr
}

// AsAPIError unwraps an APIError from an error chain.
func AsAPIError(err error) (APIError, bool) {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return APIError{}, false
}
