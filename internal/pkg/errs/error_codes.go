/*
Package errs provides custom error types and application-level error code constants.

The codes identify business and system failures both inside the server and in
the JSON envelope returned by the HTTP API.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON for the target type.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body had data after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body exceeded the upload limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the client exceeded its request rate.
	ErrRateLimitExceeded = 1007
)

// 2xxx: User Directory Errors
const (
	// ErrUserNotFound indicates that no user exists with the requested id.
	ErrUserNotFound = 2101

	// ErrInvalidUsername indicates that the requested username is empty or too long.
	ErrInvalidUsername = 2102
)

// 3xxx: Shared File Errors
const (
	// ErrFileMissing indicates that an upload request carried no file.
	ErrFileMissing = 3001

	// ErrFileNotFound indicates that the requested shared file does not exist.
	ErrFileNotFound = 3002

	// ErrFileNameInvalid indicates that a file name would escape the storage root.
	ErrFileNameInvalid = 3003

	// ErrNoFilesSelected indicates that a batch delete named no files.
	ErrNoFilesSelected = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified server error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the blob store rejected an operation.
	ErrFileStorageFailed = 5001
)
