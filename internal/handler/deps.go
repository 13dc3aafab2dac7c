package handler

import (
	"lanshare/internal/app/hub"
	"lanshare/internal/app/session"
	"lanshare/internal/app/storage"
	"lanshare/internal/app/user"
	"lanshare/internal/configs"
)

// UserLister is the directory view used by the user API.
type UserLister interface {
	ListAll() []user.User
}

// AppDeps carries the components shared by every handler.
type AppDeps struct {
	Config    *configs.AppConfig
	Gateway   *session.Gateway
	Hub       *hub.Hub
	Directory UserLister
	Store     storage.BlobStore
}
