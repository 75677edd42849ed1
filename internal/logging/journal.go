// Package logging sets up console logging and writes the JSONL change journal.
package logging

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nibzard/taskhub/internal/notify"
)

// JournalFileName is the journal file inside a journal directory.
const JournalFileName = "journal.jsonl"

// Entry is one journal line.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Session string    `json:"session"`
	Kind    string    `json:"kind"`
	TaskID  string    `json:"task_id,omitempty"`
	Title   string    `json:"title,omitempty"`
	Status  string    `json:"status,omitempty"`
}

// Journal appends change events for one data file to a JSONL file.
type Journal struct {
	Dir     string
	Path    string
	Session string

	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenJournal opens (creating if needed) the journal for dataFile under baseDir.
func OpenJournal(baseDir, dataFile string) (*Journal, error) {
	dir, err := JournalDir(baseDir, dataFile)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	path := filepath.Join(dir, JournalFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &Journal{
		Dir:     dir,
		Path:    path,
		Session: sessionID(),
		file:    file,
		now:     time.Now,
	}, nil
}

// JournalDir returns the journal directory for dataFile under baseDir.
// The directory name combines the data file's base name with a short hash of
// its absolute path, so two stores never share a journal.
func JournalDir(baseDir, dataFile string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("log base dir is empty")
	}
	key := dataFile
	if key == "" {
		key = "memory"
	} else if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	return filepath.Join(filepath.Clean(baseDir), storeSlug(key)), nil
}

// Handle is a notify.Handler that appends ev to the journal.
func (j *Journal) Handle(ev notify.Event) error {
	entry := Entry{
		Seq:     ev.Seq,
		Session: j.Session,
		Kind:    ev.Kind.String(),
		TaskID:  ev.TaskID,
	}
	if ev.Task != nil {
		entry.Title = ev.Task.Title
		entry.Status = string(ev.Task.Status)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return fmt.Errorf("journal is closed")
	}
	entry.Time = j.now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// ReadJournal reads every entry from a journal file. A missing file yields
// no entries.
func ReadJournal(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()
	return decodeEntries(file)
}

func decodeEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// TailJournal writes the last n lines of the journal to w (all lines when n
// <= 0). With follow set it keeps copying appended lines until ctx is done.
func TailJournal(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	if err := tailLines(w, file, n); err != nil {
		return err
	}
	if !follow {
		return nil
	}
	return tailFollow(ctx, w, file, 100*time.Millisecond)
}

// tailLines copies the last n lines of r to w, leaving r at EOF.
func tailLines(w io.Writer, r io.Reader, n int) error {
	if n <= 0 {
		_, err := io.Copy(w, r)
		return err
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	for _, line := range ring {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// tailFollow polls file for appended data like tail -f.
func tailFollow(ctx context.Context, w io.Writer, file *os.File, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := io.Copy(w, file); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func storeSlug(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return fmt.Sprintf("%s-%s", slugify(name), hashPath(path))
}

func slugify(input string) string {
	if strings.TrimSpace(input) == "" {
		return "tasks"
	}

	var b strings.Builder
	lastUnderscore := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		valid := (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '-'
		if !valid {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteByte(c)
		lastUnderscore = false
	}

	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "tasks"
	}
	return slug
}

func hashPath(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:8]
}

func sessionID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102-150405"), os.Getpid())
}
