// Package scan drives folder scans and file deletion. A scan's results
// stream in as newline-delimited JSON events consumed incrementally; the
// store accumulates file records, progress, and the user's selection.
package scan

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/hiddensweep/hiddensweep/pkg/api"
	"github.com/hiddensweep/hiddensweep/pkg/logging"
	"github.com/hiddensweep/hiddensweep/pkg/metrics"
	"github.com/hiddensweep/hiddensweep/pkg/models"
	"github.com/hiddensweep/hiddensweep/pkg/protocol"
)

// State is the scan lifecycle state.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Notifier surfaces scan/delete outcomes. Matched by *notify.Store.
type Notifier interface {
	Warning(message string) string
}

// Store holds the state of the current scan session.
//
// Starting a second scan while one is in flight is not guarded here; the
// caller must not invoke ScanFolder again until IsScanning is false.
type Store struct {
	api      *api.Client
	notifier Notifier

	mu        sync.RWMutex
	state     State
	folder    string
	files     []models.FileRecord
	selected  map[string]struct{}
	progress  int
	totalSize int64
	deleting  bool
}

// NewStore creates a scan store. notifier may be nil.
func NewStore(client *api.Client, notifier Notifier) *Store {
	return &Store{
		api:      client,
		notifier: notifier,
		selected: make(map[string]struct{}),
	}
}

// ScanFolder scans folderPath for hidden files, consuming the response
// stream as it arrives. It blocks until the stream ends; accumulated
// state is readable concurrently through the accessors. Any prior
// results are reset first. Malformed stream lines are skipped; a single
// bad line never aborts the scan.
func (s *Store) ScanFolder(ctx context.Context, folderPath string) error {
	if folderPath == "" {
		return &api.ValidationError{Reason: "folder path is required"}
	}

	s.mu.Lock()
	s.state = StateScanning
	s.folder = folderPath
	s.files = nil
	s.selected = make(map[string]struct{})
	s.progress = 0
	s.totalSize = 0
	s.mu.Unlock()

	body, err := s.api.Stream(ctx, http.MethodPost, "/api/files/scan",
		protocol.ScanRequest{FolderPath: folderPath})
	if err != nil {
		s.fail()
		return err
	}
	defer body.Close()

	// The scanner buffers partial lines, so a JSON record split across
	// chunk boundaries is reassembled before parsing. Lines are handled
	// strictly in arrival order.
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	completed := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev protocol.ScanEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			logging.Debug("skipping malformed scan event", zap.Error(err))
			continue
		}

		switch ev.Type {
		case protocol.EventProgress:
			s.setProgress(ev.Progress)
		case protocol.EventFile:
			if ev.File != nil {
				s.appendFile(*ev.File)
				metrics.RecordScannedFile(ev.File.Size)
			}
		case protocol.EventComplete:
			s.complete()
			completed = true
		}
	}
	if err := scanner.Err(); err != nil {
		s.fail()
		return fmt.Errorf("read scan stream: %w", err)
	}

	// A stream that ends cleanly without a complete event still counts
	// as finished with whatever arrived.
	if !completed {
		s.complete()
	}

	s.mu.RLock()
	count, size := len(s.files), s.totalSize
	s.mu.RUnlock()
	logging.Info("scan finished",
		zap.String("folder", folderPath),
		zap.Int("files", count),
		zap.Int64("total_size", size))
	return nil
}

// DeleteFiles deletes the given paths in one batch request. On success
// every requested path is removed from the local list, the selection is
// cleared, and the total size drops by exactly the removed files' sizes.
// Returns the count actually deleted as reported by the server; when
// that is lower than requested the divergence is logged and surfaced as
// a warning rather than silently trusted.
func (s *Store) DeleteFiles(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, &api.ValidationError{Reason: "no files selected"}
	}

	s.setDeleting(true)
	defer s.setDeleting(false)

	var resp protocol.DeleteResponse
	err := s.api.Call(ctx, http.MethodDelete, "/api/files/delete",
		protocol.DeleteRequest{Files: paths}, &resp)
	if err != nil {
		return 0, err
	}

	s.removePaths(paths)
	metrics.RecordDeleted(resp.DeletedCount)

	if resp.DeletedCount < len(paths) {
		logging.Warn("server deleted fewer files than requested",
			zap.Int("requested", len(paths)),
			zap.Int("deleted", resp.DeletedCount))
		if s.notifier != nil {
			s.notifier.Warning(fmt.Sprintf("%d of %d files could not be deleted",
				len(paths)-resp.DeletedCount, len(paths)))
		}
	}
	return resp.DeletedCount, nil
}

// SelectFile toggles a path's membership in the selection. Paths not in
// the current file list are ignored, keeping the selection a subset of
// the scanned files.
func (s *Store) SelectFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.selected[path]; ok {
		delete(s.selected, path)
		return
	}
	for _, f := range s.files {
		if f.Path == path {
			s.selected[path] = struct{}{}
			return
		}
	}
}

// SelectAllFiles selects every scanned file, or clears the selection when
// everything is already selected.
func (s *Store) SelectAllFiles() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.selected) == len(s.files) && len(s.files) > 0 {
		s.selected = make(map[string]struct{})
		return
	}
	s.selected = make(map[string]struct{}, len(s.files))
	for _, f := range s.files {
		s.selected[f.Path] = struct{}{}
	}
}

// ClearScan resets folder, files, selection, size, and progress. It does
// not cancel an in-flight scan; cancel the scan's context for that.
func (s *Store) ClearScan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
	s.folder = ""
	s.files = nil
	s.selected = make(map[string]struct{})
	s.progress = 0
	s.totalSize = 0
}

// Files returns a copy of the scanned file records in arrival order.
func (s *Store) Files() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FileRecord, len(s.files))
	copy(out, s.files)
	return out
}

// Selected returns the selected paths in file-list order.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.selected))
	for _, f := range s.files {
		if _, ok := s.selected[f.Path]; ok {
			out = append(out, f.Path)
		}
	}
	return out
}

// Folder returns the folder of the current scan session.
func (s *Store) Folder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folder
}

// Progress returns the scan progress, 0-100.
func (s *Store) Progress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// TotalSize returns the summed size of all scanned files.
func (s *Store) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSize
}

// State returns the scan lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsScanning reports whether a scan is in flight.
func (s *Store) IsScanning() bool {
	return s.State() == StateScanning
}

// IsDeleting reports whether a delete request is in flight.
func (s *Store) IsDeleting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleting
}

// History fetches past scan sessions.
func (s *Store) History(ctx context.Context) ([]protocol.ScanRecord, error) {
	var resp protocol.HistoryResponse
	if err := s.api.Call(ctx, http.MethodGet, "/api/files/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scans, nil
}

// Stats fetches aggregate cleanup statistics.
func (s *Store) Stats(ctx context.Context) (*protocol.StatsResponse, error) {
	var resp protocol.StatsResponse
	if err := s.api.Call(ctx, http.MethodGet, "/api/files/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Store) appendFile(f models.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, f)
	s.totalSize += f.Size
}

// setProgress ignores out-of-order regressions so progress stays monotonic.
func (s *Store) setProgress(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p > s.progress {
		s.progress = p
	}
}

func (s *Store) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = 100
	s.state = StateComplete
}

func (s *Store) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
}

func (s *Store) setDeleting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleting = v
}

// removePaths drops the given paths from the file list, clears the
// selection, and subtracts the removed sizes looked up from the
// pre-delete list.
func (s *Store) removePaths(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		doomed[p] = struct{}{}
	}

	kept := s.files[:0]
	for _, f := range s.files {
		if _, ok := doomed[f.Path]; ok {
			s.totalSize -= f.Size
			continue
		}
		kept = append(kept, f)
	}
	s.files = kept
	s.selected = make(map[string]struct{})
}
