package session

import (
	"lanshare/internal/app/storage"
	"lanshare/internal/app/user"
)

// Inbound event names.
const (
	EventUserLogin      = "user_login"
	EventSendMessage    = "send_message"
	EventUpdateUsername = "update_username"
)

// Outbound event names.
const (
	EventLoginSuccess    = "login_success"
	EventFileListUpdate  = "file_list_update"
	EventUserListUpdate  = "user_list_update"
	EventNewMessage      = "new_message"
	EventUsernameUpdated = "username_updated"
)

type loginRequest struct {
	DeviceInfo string `json:"device_info"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
	IsImage bool   `json:"is_image"`
}

type updateUsernameRequest struct {
	Username string `json:"username"`
}

// FileListPayload is the data of a file_list_update event.
type FileListPayload struct {
	Files []storage.FileInfo `json:"files"`
}

// UserListPayload is the data of a user_list_update event.
type UserListPayload struct {
	Users []user.Payload `json:"users"`
}

// ChatMessage is the data of a new_message event.
type ChatMessage struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	IsImage   bool   `json:"is_image"`
	Timestamp string `json:"timestamp"`
}
