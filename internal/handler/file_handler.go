package handler

import (
	"bufio"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"lanshare/internal/app/session"
	"lanshare/internal/app/storage"
	"lanshare/internal/pkg/errs"
	"lanshare/internal/pkg/logx"
	"lanshare/internal/pkg/req"
	"lanshare/internal/pkg/resp"
)

// sniffLen is how much of a download is read to detect its content type.
const sniffLen = 3072

// BatchDeleteInput defines the JSON input structure for deleting several files.
type BatchDeleteInput struct {
	Filenames []string `json:"filenames"`
}

// HandleListFiles returns every shared file, newest first.
func HandleListFiles(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := deps.Store.List(r.Context())
		if err != nil {
			logx.Error(err, "Failed to list shared files")
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		if files == nil {
			files = []storage.FileInfo{}
		}
		resp.RespondSuccess(w, r, session.FileListPayload{Files: files})
	}
}

// HandleUpload stores the multipart field "file" and broadcasts the new file list.
// A taken name is saved with a numeric suffix; the response carries the name used.
func HandleUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, customErr := req.FormFile(w, r, "file", deps.Config.MaxUploadBytes())
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		defer file.Close()

		name, err := deps.Store.Put(r.Context(), file, header.Filename)
		if err != nil {
			resp.RespondError(w, r, storageError(err, header.Filename))
			return
		}

		logx.Info("File uploaded", "filename", name, "size", header.Size, "ip", clientIP(r))

		deps.Gateway.NotifyFilesChanged(r.Context())

		resp.RespondSuccess(w, r, map[string]string{"filename": name})
	}
}

// HandleDownload streams a shared file as an attachment.
func HandleDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := fileNameParam(r)

		rc, err := deps.Store.Open(r.Context(), name)
		if err != nil {
			resp.RespondError(w, r, storageError(err, name))
			return
		}
		defer rc.Close()

		br := bufio.NewReaderSize(rc, sniffLen)
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			logx.Error(err, "Failed to read shared file", "filename", name)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		w.Header().Set("Content-Type", mimetype.Detect(head).String())
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, br); err != nil {
			logx.Warn("Download interrupted", "filename", name, "error", err.Error())
		}
	}
}

// HandleDelete removes one shared file and broadcasts the new file list.
func HandleDelete(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := fileNameParam(r)

		if err := deps.Store.Delete(r.Context(), name); err != nil {
			resp.RespondError(w, r, storageError(err, name))
			return
		}

		logx.Info("File deleted", "filename", name, "ip", clientIP(r))

		deps.Gateway.NotifyFilesChanged(r.Context())

		resp.RespondSuccess(w, r, map[string]string{"filename": name})
	}
}

// HandleBatchDelete removes every listed file it can and reports how many
// were deleted. Missing or invalid names are skipped.
func HandleBatchDelete(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input BatchDeleteInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		names := lo.Uniq(lo.Compact(input.Filenames))
		if len(names) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrNoFilesSelected))
			return
		}

		deleted := 0
		for _, name := range names {
			if err := deps.Store.Delete(r.Context(), name); err != nil {
				logx.Warn("Batch delete skipped file", "filename", name, "error", err.Error())
				continue
			}
			deleted++
		}

		logx.Info("Batch delete finished", "requested", len(names), "deleted", deleted, "ip", clientIP(r))

		deps.Gateway.NotifyFilesChanged(r.Context())

		resp.RespondSuccess(w, r, map[string]int{"deleted_count": deleted})
	}
}

// fileNameParam returns the {filename} route parameter, unescaped.
// chi matches on RawPath when the request path carried escapes.
func fileNameParam(r *http.Request) string {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath == "" {
		return name
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

// storageError maps a blob store failure to its API error.
func storageError(err error, name string) *errs.CustomError {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errs.NewError(errs.ErrFileNotFound)
	case errors.Is(err, storage.ErrInvalidName):
		return errs.NewError(errs.ErrFileNameInvalid)
	default:
		logx.Error(err, "Blob store operation failed", "filename", name)
		return errs.NewError(errs.ErrFileStorageFailed)
	}
}
