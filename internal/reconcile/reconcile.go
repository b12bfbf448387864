// Package reconcile recovers which camera produced each capture folder.
//
// The viewer writes one folder per captured camera in slot order, so the
// newest folder belongs to the highest available slot. Slots skipped during
// the run produce no usable folder, which is why the oldest |unavailable|
// folders are discarded before mapping.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/coords"
	"github.com/mikeyg42/plantwatch/internal/farms"
)

var (
	// ErrNoSlot means a folder position had no available slot to map to.
	ErrNoSlot = errors.New("no camera slot for folder position")
	// ErrNoRecord means the mapped camera has no farm record.
	ErrNoRecord = errors.New("no record for camera")
)

// Folder is one capture directory.
type Folder struct {
	Path    string
	Name    string
	ModTime time.Time
}

// Entry is a folder with its recovered camera.
type Entry struct {
	Folder Folder
	Slot   int
	Camera int
	Record farms.Record
	// ImagePath is the newest .bmp in the folder, empty when there is none.
	ImagePath string
}

// HasImage reports whether a capture was found.
func (e Entry) HasImage() bool {
	return e.ImagePath != ""
}

// Gap is a folder that could not be attributed to a camera.
type Gap struct {
	Folder   Folder
	Position int
	Camera   int
	Err      error
}

// Plan is the outcome of one reconciliation.
type Plan struct {
	// Entries in ascending camera order.
	Entries []Entry
	Gaps    []Gap
	// Discarded are the oldest folders dropped before mapping.
	Discarded []Folder
}

// Records resolves a 1-based camera number to its farm record.
type Records interface {
	Lookup(camera int) (farms.Record, bool)
}

// Reconciler maps folders under a capture root to camera records.
type Reconciler struct {
	root    string
	records Records
	logger  *zap.Logger
}

func New(root string, records Records) *Reconciler {
	return &Reconciler{
		root:    root,
		records: records,
		logger:  zap.L().Named("reconcile"),
	}
}

// WithLogger replaces the reconciler's logger.
func (r *Reconciler) WithLogger(l *zap.Logger) *Reconciler {
	if l != nil {
		r.logger = l
	}
	return r
}

// Reconcile lists the capture root and attributes folders given the run's unavailable slots.
func (r *Reconciler) Reconcile(unavailable []int) (Plan, error) {
	folders, err := ListFolders(r.root)
	if err != nil {
		return Plan{}, err
	}

	available := Available(unavailable)
	kept, discarded := Truncate(folders, coords.Slots-len(available), len(available))
	slots := MapSlots(len(kept), available)

	plan := Plan{Discarded: discarded}
	for p, f := range kept {
		slot := slots[p]
		if slot < 0 {
			plan.Gaps = append(plan.Gaps, Gap{Folder: f, Position: p, Err: ErrNoSlot})
			r.logger.Warn("Folder has no camera slot",
				zap.String("folder", f.Path),
				zap.Int("position", p))
			continue
		}
		camera := slot + 1

		image, err := LatestBMP(f.Path)
		if err != nil {
			r.logger.Warn("Failed to scan folder", zap.String("folder", f.Path), zap.Error(err))
		}

		entry := Entry{Folder: f, Slot: slot, Camera: camera, ImagePath: image}
		if image != "" {
			rec, ok := r.records.Lookup(camera)
			if !ok {
				plan.Gaps = append(plan.Gaps, Gap{
					Folder:   f,
					Position: p,
					Camera:   camera,
					Err:      fmt.Errorf("%w %d", ErrNoRecord, camera),
				})
				r.logger.Warn("Camera has no record",
					zap.String("folder", f.Path),
					zap.Int("camera", camera))
				continue
			}
			entry.Record = rec
		}
		plan.Entries = append(plan.Entries, entry)
	}

	reverse(plan.Entries)

	r.logger.Info("Folders reconciled",
		zap.Int("folders", len(folders)),
		zap.Int("discarded", len(discarded)),
		zap.Int("entries", len(plan.Entries)),
		zap.Int("gaps", len(plan.Gaps)))
	return plan, nil
}

// ListFolders returns the subdirectories of root, newest first. Equal
// modification times fall back to name, descending.
func ListFolders(root string) ([]Folder, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture root: %w", err)
	}

	folders := make([]Folder, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		folders = append(folders, Folder{
			Path:    filepath.Join(root, d.Name()),
			Name:    d.Name(),
			ModTime: info.ModTime(),
		})
	}

	SortNewestFirst(folders)
	return folders, nil
}

// SortNewestFirst orders folders by modification time descending, then name descending.
func SortNewestFirst(folders []Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		if !folders[i].ModTime.Equal(folders[j].ModTime) {
			return folders[i].ModTime.After(folders[j].ModTime)
		}
		return folders[i].Name > folders[j].Name
	})
}

// Truncate drops the unavailable oldest folders, then keeps at most limit of
// the newest survivors. folders must be sorted newest first.
func Truncate(folders []Folder, unavailable, limit int) (kept, discarded []Folder) {
	n := len(folders) - unavailable
	if n < 0 {
		n = 0
	}
	if limit >= 0 && n > limit {
		n = limit
	}
	return folders[:n], folders[n:]
}

// Available returns [0..15] minus unavailable, ascending.
func Available(unavailable []int) []int {
	skip := make(map[int]bool, len(unavailable))
	for _, s := range unavailable {
		skip[s] = true
	}
	out := make([]int, 0, coords.Slots)
	for s := 0; s < coords.Slots; s++ {
		if !skip[s] {
			out = append(out, s)
		}
	}
	return out
}

// MapSlots returns the slot for each of n folder positions (0 = newest):
// position p gets available[n-1-p], or -1 when that index is out of range.
func MapSlots(n int, available []int) []int {
	out := make([]int, n)
	for p := 0; p < n; p++ {
		i := n - 1 - p
		if i >= 0 && i < len(available) {
			out[p] = available[i]
		} else {
			out[p] = -1
		}
	}
	return out
}

// LatestBMP returns the most recently modified .bmp file in dir, matching the
// extension case-insensitively, or "" when there is none.
func LatestBMP(dir string) (string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var latest string
	var latestMod time.Time
	for _, d := range dirents {
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".bmp") {
			continue
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, d.Name())
			latestMod = info.ModTime()
		}
	}
	return latest, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
