// Package workspace keeps rendered reports in a directory together with an
// index of what produced them.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/statloom-cli/internal/report"
	"github.com/KaramelBytes/statloom-cli/internal/utils"
	"github.com/google/uuid"
)

const (
	// FileName is the index file at the root of every workspace.
	FileName   = "workspace.json"
	reportsDir = "reports"
)

// ErrExists is returned by Init when the directory already holds a workspace.
var ErrExists = errors.New("workspace already exists")

// Workspace represents a report collection persisted on disk.
type Workspace struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Entries     map[string]*Entry `json:"entries"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// Not serialized: on-disk location of the workspace.json
	rootDir string `json:"-"`
}

// Entry records one stored report.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	File      string    `json:"file"` // relative to the workspace root
	Format    string    `json:"format"`
	Sections  int       `json:"sections"`
	CreatedAt time.Time `json:"created_at"`
}

// New constructs an in-memory workspace. Call Save() to persist.
func New(name, description, rootDir string) *Workspace {
	now := time.Now()
	return &Workspace{
		Name:        name,
		Description: description,
		Entries:     make(map[string]*Entry),
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}
}

// Init creates and saves a new workspace in dir. The name defaults to the
// directory's base name.
func Init(dir, name, description string) (*Workspace, error) {
	if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
		return nil, fmt.Errorf("%s: %w", dir, ErrExists)
	}
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(filepath.Clean(dir))
	}
	w := New(name, description, dir)
	if err := utils.EnsureDir(filepath.Join(dir, reportsDir)); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	if err := w.Save(); err != nil {
		return nil, err
	}
	return w, nil
}

// Open loads a workspace.json from the provided directory.
func Open(dir string) (*Workspace, error) {
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("workspace not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var w Workspace
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("parse workspace: %w", err)
	}
	if w.Entries == nil {
		w.Entries = make(map[string]*Entry)
	}
	w.rootDir = dir
	return &w, nil
}

// Find opens the workspace containing start, walking up the directory tree.
func Find(start string) (*Workspace, error) {
	root, err := utils.FindRoot(start, FileName)
	if err != nil {
		return nil, fmt.Errorf("find workspace: %w", err)
	}
	return Open(root)
}

// RootDir returns the on-disk workspace directory path.
func (w *Workspace) RootDir() string { return w.rootDir }

// Save writes workspace.json using atomic write.
func (w *Workspace) Save() error {
	if w.rootDir == "" {
		return errors.New("workspace root directory not set")
	}
	if err := utils.EnsureDir(w.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	w.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(w)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(w.rootDir, FileName), data)
}

// AddReport renders rep in format f into the reports folder under a file name
// derived from title (or the report source when title is empty) and records
// it. Existing files are never overwritten. Call Save() to persist the index.
func (w *Workspace) AddReport(rep *report.Report, title string, f report.Format, opt report.RenderOptions) (*Entry, error) {
	if rep == nil {
		return nil, errors.New("nil report")
	}
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(filepath.Base(rep.Source), filepath.Ext(rep.Source))
	}
	data, err := rep.Render(f, opt)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	dir := filepath.Join(w.rootDir, reportsDir)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	path, err := utils.UniquePath(dir, utils.Slug(title, "report"), f.Ext())
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(w.rootDir, path)
	if err != nil {
		rel = path
	}
	e := &Entry{
		ID:        uuid.NewString(),
		Title:     title,
		Source:    rep.Source,
		File:      filepath.ToSlash(rel),
		Format:    string(f),
		Sections:  len(rep.Sections),
		CreatedAt: time.Now(),
	}
	if w.Entries == nil {
		w.Entries = make(map[string]*Entry)
	}
	w.Entries[e.ID] = e
	w.UpdatedAt = time.Now()
	return e, nil
}

// Path returns the absolute location of an entry's report file.
func (w *Workspace) Path(e *Entry) string {
	return filepath.Join(w.rootDir, filepath.FromSlash(e.File))
}

// List returns the entries oldest first.
func (w *Workspace) List() []*Entry {
	out := make([]*Entry, 0, len(w.Entries))
	for _, e := range w.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].File < out[j].File
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
