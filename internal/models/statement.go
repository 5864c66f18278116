package models

import "time"

// Statement lifecycle states. The DB enforces the same set with a CHECK
// constraint.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Client is an account owner statements are filed under.
type Client struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ContactName  string    `json:"contactName,omitempty"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Statement is an uploaded PDF and its processing state. Progress runs
// 0-100 and only reaches 100 on completed.
type Statement struct {
	ID         int64     `json:"id"`
	ClientID   int64     `json:"clientId"`
	UploadedAt time.Time `json:"uploadedAt"`
	FilePath   string    `json:"filePath"`
	OCRText    string    `json:"-"`
	Progress   int       `json:"progress"`
	Status     string    `json:"status"`
}
