/*
Package errs provides custom error types and application-level error code constants.

This file maps every code to its CustomError template.
*/
package errs

import "net/http"

// errorMap holds the message and HTTP status for every application error code.
// A zero Status is reported as 200, with the failure carried in the envelope code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "File is larger than the %d MB limit.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: User Directory Errors
	ErrUserNotFound:    {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrInvalidUsername: {Code: ErrInvalidUsername, Message: "Username must be between 1 and 50 characters.", Status: http.StatusBadRequest},

	// 3xxx: Shared File Errors
	ErrFileMissing:     {Code: ErrFileMissing, Message: "No file was uploaded.", Status: http.StatusBadRequest},
	ErrFileNotFound:    {Code: ErrFileNotFound, Message: "File not found.", Status: http.StatusNotFound},
	ErrFileNameInvalid: {Code: ErrFileNameInvalid, Message: "Invalid file name.", Status: http.StatusBadRequest},
	ErrNoFilesSelected: {Code: ErrNoFilesSelected, Message: "No files selected for deletion.", Status: http.StatusBadRequest},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File operation failed. Please try again.", Status: http.StatusInternalServerError},
}
