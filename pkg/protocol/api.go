// Package protocol defines the API request/response types.
package protocol

import (
	"time"

	"github.com/hiddensweep/hiddensweep/pkg/models"
)

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by the register and login endpoints.
type AuthResponse struct {
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

// VerifyResponse is returned by GET /api/auth/verify.
type VerifyResponse struct {
	User *models.User `json:"user"`
}

// RefreshResponse is returned by POST /api/auth/refresh.
type RefreshResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is returned on API errors. Some endpoints use "error",
// others "message"; both are carried.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ScanRequest is the body for POST /api/files/scan.
type ScanRequest struct {
	FolderPath string `json:"folderPath"`
}

// Scan stream event types.
const (
	EventProgress = "progress"
	EventFile     = "file"
	EventComplete = "complete"
)

// ScanEvent is one newline-delimited JSON record of the scan stream.
type ScanEvent struct {
	Type     string             `json:"type"`
	Progress int                `json:"progress,omitempty"`
	File     *models.FileRecord `json:"file,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// DeleteRequest is the body for DELETE /api/files/delete.
type DeleteRequest struct {
	Files []string `json:"files"`
}

// DeleteResponse is returned by DELETE /api/files/delete. DeletedCount
// may be lower than the number of requested paths when some no longer
// exist server-side.
type DeleteResponse struct {
	DeletedCount int    `json:"deletedCount"`
	Message      string `json:"message,omitempty"`
}

// ScanRecord is one entry of the scan history.
type ScanRecord struct {
	ID         int64     `json:"id"`
	FolderPath string    `json:"folderPath"`
	FileCount  int       `json:"fileCount"`
	TotalSize  int64     `json:"totalSize"`
	ScannedAt  time.Time `json:"scannedAt"`
}

// HistoryResponse is returned by GET /api/files/history.
type HistoryResponse struct {
	Scans []ScanRecord `json:"scans"`
}

// StatsResponse is returned by GET /api/files/stats.
type StatsResponse struct {
	TotalScans        int   `json:"totalScans"`
	TotalFilesDeleted int   `json:"totalFilesDeleted"`
	TotalBytesFreed   int64 `json:"totalBytesFreed"`
}
