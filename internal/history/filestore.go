package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	BackupFile     = "backup.json"
	BackupRawFile  = "backup.raw.json"
	IterationsFile = "iterations.jsonl"
	SummaryFile    = "summary.json"
	lockFile       = ".lock"

	lockTimeout       = 2 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// ErrNoBackup is returned by Restore when a session never wrote a backup.
var ErrNoBackup = errors.New("history: session has no backup")

// FileStore keeps optimization sessions under <root>/<agent>/<session-id>/.
type FileStore struct {
	Root string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Root: dir}
}

// SessionDir returns the directory holding a session's files.
func (s *FileStore) SessionDir(agent, sessionID string) string {
	return filepath.Join(s.Root, safeSegment(agent), safeSegment(sessionID))
}

// SaveBackup writes backup.json and the resource bytes to backup.raw.json,
// unchanged. An existing backup is never replaced so a resumed session
// cannot lose the original prompt.
func (s *FileStore) SaveBackup(ctx context.Context, sessionID string, backup Backup) error {
	return s.withLock(ctx, backup.Agent, sessionID, func(dir string) error {
		path := filepath.Join(dir, BackupFile)
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if len(backup.Raw) > 0 {
			if err := writeFile(filepath.Join(dir, BackupRawFile), backup.Raw); err != nil {
				return err
			}
		}
		return writeJSON(path, backup)
	})
}

// AppendIteration appends one record to iterations.jsonl.
func (s *FileStore) AppendIteration(ctx context.Context, it Iteration) error {
	return s.withLock(ctx, it.Agent, it.SessionID, func(dir string) error {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode iteration: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(dir, IterationsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open iterations: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			_ = file.Close()
			return fmt.Errorf("append iteration: %w", err)
		}
		return file.Close()
	})
}

// SaveSummary writes summary.json, replacing any previous one.
func (s *FileStore) SaveSummary(ctx context.Context, summary Summary) error {
	return s.withLock(ctx, summary.Agent, summary.SessionID, func(dir string) error {
		return writeJSON(filepath.Join(dir, SummaryFile), summary)
	})
}

// LoadSession reads every file stored for a session.
func (s *FileStore) LoadSession(agent, sessionID string) (Session, error) {
	dir := s.SessionDir(agent, sessionID)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, fmt.Errorf("session %s/%s not found", agent, sessionID)
		}
		return Session{}, fmt.Errorf("stat session: %w", err)
	}
	if !info.IsDir() {
		return Session{}, fmt.Errorf("session path %q is not a directory", dir)
	}
	session := Session{ID: sessionID, Agent: agent, Dir: dir}

	if backup, ok, err := readBackup(dir); err != nil {
		return Session{}, err
	} else if ok {
		session.Backup = &backup
	}
	var summary Summary
	if ok, err := readJSON(filepath.Join(dir, SummaryFile), &summary); err != nil {
		return Session{}, err
	} else if ok {
		session.Summary = &summary
	}
	iterations, err := readIterations(filepath.Join(dir, IterationsFile))
	if err != nil {
		return Session{}, err
	}
	session.Iterations = iterations
	return session, nil
}

// ListSessions returns stored sessions, newest first. An empty agent lists
// sessions for every agent.
func (s *FileStore) ListSessions(agent string) ([]SessionInfo, error) {
	agents := []string{}
	if agent != "" {
		agents = append(agents, safeSegment(agent))
	} else {
		entries, err := os.ReadDir(s.Root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read history dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
				agents = append(agents, entry.Name())
			}
		}
	}

	var sessions []SessionInfo
	for _, name := range agents {
		entries, err := os.ReadDir(filepath.Join(s.Root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read agent history: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("stat session: %w", err)
			}
			dir := filepath.Join(s.Root, name, entry.Name())
			item := SessionInfo{ID: entry.Name(), Agent: name, Dir: dir, ModTime: info.ModTime()}
			var summary Summary
			if ok, err := readJSON(filepath.Join(dir, SummaryFile), &summary); err == nil && ok {
				item.Status = summary.Status
				if !summary.FinishedAt.IsZero() {
					item.ModTime = summary.FinishedAt
				}
			}
			sessions = append(sessions, item)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].ModTime.Equal(sessions[j].ModTime) {
			return sessions[i].ModTime.After(sessions[j].ModTime)
		}
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

// Restore returns the backup written at the start of a session.
func (s *FileStore) Restore(agent, sessionID string) (Backup, error) {
	backup, ok, err := readBackup(s.SessionDir(agent, sessionID))
	if err != nil {
		return Backup{}, err
	}
	if !ok {
		return Backup{}, ErrNoBackup
	}
	return backup, nil
}

// withLock runs fn while holding the session's lock file.
func (s *FileStore) withLock(ctx context.Context, agent, sessionID string, fn func(dir string) error) error {
	if strings.TrimSpace(agent) == "" || strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("history: agent and session id are required")
	}
	dir := s.SessionDir(agent, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	fileLock := flock.New(filepath.Join(dir, lockFile))
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	if !locked {
		return fmt.Errorf("lock session %s: timeout after %v", sessionID, lockTimeout)
	}
	defer func() {
		_ = fileLock.Unlock()
	}()
	return fn(dir)
}

func readBackup(dir string) (Backup, bool, error) {
	var backup Backup
	ok, err := readJSON(filepath.Join(dir, BackupFile), &backup)
	if err != nil || !ok {
		return Backup{}, ok, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, BackupRawFile))
	switch {
	case err == nil:
		backup.Raw = raw
	case !os.IsNotExist(err):
		return Backup{}, false, fmt.Errorf("read %s: %w", BackupRawFile, err)
	}
	return backup, true, nil
}

// writeJSON writes indented JSON through a temp file and rename.
func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, append(data, '\n'))
}

// writeFile replaces path through a temp file and rename.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readJSON decodes path into value; a missing file reports ok=false.
func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func readIterations(path string) ([]Iteration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read iterations: %w", err)
	}
	var out []Iteration
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var it Iteration
		if err := json.Unmarshal(text, &it); err != nil {
			return nil, fmt.Errorf("iterations line %d: %w", line, err)
		}
		out = append(out, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan iterations: %w", err)
	}
	return out, nil
}

// safeSegment keeps a name usable as a single path segment.
func safeSegment(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	name = replacer.Replace(name)
	if name == "" {
		return "_"
	}
	return name
}
