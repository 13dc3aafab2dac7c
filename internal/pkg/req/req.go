/*
Package req provides helpers for HTTP request parsing and data binding.

It decodes strict JSON bodies, runs struct-tag validation on them, and extracts
size-capped multipart uploads, reporting failures as errs.CustomError values.
*/
package req

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"lanshare/internal/pkg/errs"
)

// MaxFormMemory is the amount of a multipart body kept in memory; the rest
// of an upload is spooled to temporary files by the standard library.
const MaxFormMemory int64 = 32 << 20 // 32 MB

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindJSON decodes the JSON request body into dst, rejecting unknown fields
// and trailing content, then validates dst's `validate` struct tags.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	if err := validate.Struct(dst); err != nil {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}

// FormFile caps the request body at maxBytes, parses the multipart form and
// returns the named file part. The caller closes the returned file.
func FormFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (multipart.File, *multipart.FileHeader, *errs.CustomError) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(MaxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, errs.NewError(errs.ErrRequestEntityTooLarge, maxBytes>>20)
		}
		return nil, nil, errs.NewError(errs.ErrFormParseFailed)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, errs.NewError(errs.ErrFileMissing)
	}

	if header.Filename == "" {
		file.Close()
		return nil, nil, errs.NewError(errs.ErrFileMissing)
	}

	return file, header, nil
}
