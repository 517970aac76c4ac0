package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/config"
)

const recordFile = "session.json"

// Auditor owns one session directory and the record written into it. Every
// attempt, event, and screenshot of a run lands under that directory, and
// old session directories are pruned down to the retention cap.
type Auditor struct {
	cfg        config.AuditConfig
	logger     *zap.Logger
	sessionDir string
	record     schemas.SessionRecord
}

// New creates the session directory and prunes old sessions. Pruning
// failures are logged, never fatal; losing an old log must not block a run.
func New(cfg config.AuditConfig, logger *zap.Logger) (*Auditor, error) {
	sessionID := uuid.NewString()
	dirName := fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102T150405"), sessionID[:8])
	sessionDir := filepath.Join(cfg.Dir, dirName)

	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	a := &Auditor{
		cfg:        cfg,
		logger:     logger.Named("audit"),
		sessionDir: sessionDir,
		record: schemas.SessionRecord{
			SessionID: sessionID,
			StartedAt: time.Now().UTC(),
		},
	}
	a.prune()

	if err := a.flush(); err != nil {
		return nil, err
	}
	return a, nil
}

// SessionDir returns the directory this session writes into.
func (a *Auditor) SessionDir() string { return a.sessionDir }

// SessionID returns the session's identifier.
func (a *Auditor) SessionID() string { return a.record.SessionID }

// BeginAttempt opens a new attempt record for a job.
func (a *Auditor) BeginAttempt(job schemas.JobTarget) {
	a.record.Attempts = append(a.record.Attempts, schemas.JobAttempt{
		Job:       job,
		Status:    schemas.StatusRunning,
		StartedAt: time.Now().UTC(),
	})
}

func (a *Auditor) current() *schemas.JobAttempt {
	if len(a.record.Attempts) == 0 {
		return nil
	}
	return &a.record.Attempts[len(a.record.Attempts)-1]
}

// SetDetection records the platform classification for the open attempt.
func (a *Auditor) SetDetection(d schemas.DetectionResult) {
	if cur := a.current(); cur != nil {
		cur.Detection = d
	}
}

// SetResolved records the resolution outcome for the open attempt.
func (a *Auditor) SetResolved(resolved []schemas.ResolvedValue) {
	if cur := a.current(); cur != nil {
		cur.Resolved = resolved
	}
}

// Event appends a timestamped event to the open attempt's trail.
func (a *Auditor) Event(state, message string) {
	cur := a.current()
	if cur == nil {
		return
	}
	cur.Events = append(cur.Events, schemas.AuditEvent{
		At:      time.Now().UTC(),
		State:   state,
		Message: message,
	})
}

// FinishAttempt closes the open attempt with a terminal status and persists
// the record.
func (a *Auditor) FinishAttempt(status schemas.AttemptStatus, reason string) {
	cur := a.current()
	if cur == nil {
		return
	}
	cur.Status = status
	cur.Reason = reason
	cur.FinishedAt = time.Now().UTC()
	if err := a.flush(); err != nil {
		a.logger.Warn("Failed to persist session record", zap.Error(err))
	}
}

// SaveScreenshot writes a checkpoint image into the session directory and
// attaches the reference to the open attempt. Disabled or failed captures
// degrade to a log line.
func (a *Auditor) SaveScreenshot(checkpoint string, png []byte) {
	if !a.cfg.Screenshots || len(png) == 0 {
		return
	}
	cur := a.current()
	if cur == nil {
		return
	}
	name := fmt.Sprintf("attempt%02d_%s.png", len(a.record.Attempts), checkpoint)
	path := filepath.Join(a.sessionDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		a.logger.Warn("Failed to write screenshot", zap.String("checkpoint", checkpoint), zap.Error(err))
		return
	}
	cur.Screenshots = append(cur.Screenshots, schemas.ScreenshotRef{
		Checkpoint: checkpoint,
		Path:       name,
		TakenAt:    time.Now().UTC(),
	})
}

// Record returns a copy of the session record so far.
func (a *Auditor) Record() schemas.SessionRecord {
	rec := a.record
	rec.Attempts = append([]schemas.JobAttempt(nil), a.record.Attempts...)
	return rec
}

// Close stamps the session end and persists the final record.
func (a *Auditor) Close() error {
	a.record.FinishedAt = time.Now().UTC()
	return a.flush()
}

func (a *Auditor) flush() error {
	data, err := json.MarshalIndent(a.record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	path := filepath.Join(a.sessionDir, recordFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

// prune deletes the oldest session directories beyond the retention cap.
// Directory names start with a UTC timestamp, so lexical order is age order.
func (a *Auditor) prune() {
	entries, err := os.ReadDir(a.cfg.Dir)
	if err != nil {
		a.logger.Warn("Failed to list session dirs for pruning", zap.Error(err))
		return
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	max := a.cfg.MaxSessions
	if max <= 0 || len(dirs) <= max {
		return
	}

	sort.Strings(dirs)
	for _, name := range dirs[:len(dirs)-max] {
		path := filepath.Join(a.cfg.Dir, name)
		if err := os.RemoveAll(path); err != nil {
			a.logger.Warn("Failed to prune session dir", zap.String("dir", path), zap.Error(err))
			continue
		}
		a.logger.Debug("Pruned old session dir", zap.String("dir", path))
	}
}

// LoadRecord reads a persisted session record from a session directory.
func LoadRecord(sessionDir string) (schemas.SessionRecord, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, recordFile))
	if err != nil {
		return schemas.SessionRecord{}, fmt.Errorf("read session record: %w", err)
	}
	var rec schemas.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return schemas.SessionRecord{}, fmt.Errorf("parse session record: %w", err)
	}
	return rec, nil
}
