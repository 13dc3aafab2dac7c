/*
Package handler provides HTTP handler functions for the user directory.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lanshare/internal/app/session"
	"lanshare/internal/app/user"
	"lanshare/internal/pkg/errs"
	"lanshare/internal/pkg/limiter"
	"lanshare/internal/pkg/logx"
	"lanshare/internal/pkg/req"
	"lanshare/internal/pkg/resp"
)

// RenameUserInput defines the JSON input structure for renaming a user.
type RenameUserInput struct {
	Username string `json:"username" validate:"required"`
}

// HandleListUsers returns every known user, online or not.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := user.Payloads(deps.Directory.ListAll())
		resp.RespondSuccess(w, r, session.UserListPayload{Users: users})
	}
}

// HandleRenameUser changes a user's display name and broadcasts the online list.
func HandleRenameUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")

		var input RenameUserInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, err := deps.Gateway.RenameUser(userID, input.Username)
		switch {
		case errors.Is(err, session.ErrInvalidUsername):
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		case errors.Is(err, session.ErrUserNotFound):
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		case err != nil:
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		logx.Info("User renamed over HTTP", "user_id", u.ID, "username", u.Username, "ip", clientIP(r))

		resp.RespondSuccess(w, r, u.Payload())
	}
}

func clientIP(r *http.Request) string {
	return limiter.ClientIP(r)
}
