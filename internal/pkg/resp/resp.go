/*
Package resp provides helpers for writing the standardized JSON response envelope.

Every API response carries a business code (0 on success), a message and an
optional data payload.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"lanshare/internal/pkg/errs"
	"lanshare/internal/pkg/logx"
)

// JSONResponse is the envelope written by every JSON endpoint.
type JSONResponse struct {
	// Code is 0 for success, otherwise one of the errs constants.
	Code int `json:"code"`

	// Message is a short human-readable status.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON marshals payload and writes it with the given HTTP status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus, "uri", r.RequestURI)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)

	if _, err := w.Write(body); err != nil {
		logx.Warn("Failed to write JSON response", "error", err.Error(), "uri", r.RequestURI)
	}
}

// RespondSuccess writes a 200 response with code 0.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondError writes customErr using its own HTTP status.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
