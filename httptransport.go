package threedsecure

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxResponseBytes = 4 << 20

func readBody(body io.ReadCloser) ([]byte, error) {
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxResponseBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}
	return data, nil
}

type gatewayErrorBody struct {
	Error *gatewayMessage `json:"error"`
}

// errorFromResponse maps a non-2xx gateway response onto the error types
// callers can inspect: 422 carries a user-facing validation message.
func errorFromResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusUnprocessableEntity {
		var payload gatewayErrorBody
		msg := ""
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
			msg = payload.Error.Message
		}
		return &ErrorWithResponse{StatusCode: resp.StatusCode, Message: msg, Body: body}
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
		Headers:    resp.Header.Clone(),
	}
}

func writeJSONError(w http.ResponseWriter, payload *Error) {
	status := payload.StatusCode()
	if status == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
