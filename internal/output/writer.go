package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"hubstage/internal/transform"
	"hubstage/pkg/errors"
)

// ManifestFile is written next to the generated models.
const ManifestFile = "manifest.json"

// Manifest records what the last generation wrote.
type Manifest struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Models      []ManifestEntry `json:"models"`
}

// ManifestEntry describes one generated model file.
type ManifestEntry struct {
	Object      string               `json:"object"`
	Model       string               `json:"model"`
	File        string               `json:"file"`
	Source      string               `json:"source"`
	Columns     []string             `json:"columns"`
	Fingerprint string               `json:"fingerprint"`
	Advisories  []transform.Advisory `json:"advisories,omitempty"`
}

// WriteStatus says what happened to one model file.
type WriteStatus string

const (
	StatusCreated   WriteStatus = "created"
	StatusUpdated   WriteStatus = "updated"
	StatusUnchanged WriteStatus = "unchanged"
)

// FileResult is the outcome for one model file.
type FileResult struct {
	Model  string
	Path   string
	Status WriteStatus
}

// Writer writes generated models into a directory
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a writer for dir
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Write stores each result as <model>.sql and refreshes the manifest. Files
// whose fingerprint matches the previous manifest and whose content is still
// on disk are left untouched.
func (w *Writer) Write(runID string, results []*transform.Result) ([]FileResult, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create output directory").
			WithContext("dir", w.dir)
	}

	previous, err := ReadManifest(w.dir)
	if err != nil {
		return nil, err
	}
	known := map[string]string{}
	if previous != nil {
		for _, e := range previous.Models {
			known[e.Model] = e.Fingerprint
		}
	}

	manifest := Manifest{RunID: runID, GeneratedAt: w.now().UTC()}
	var out []FileResult

	for _, res := range results {
		file := res.Model + ".sql"
		path := filepath.Join(w.dir, file)
		fp := FormatFingerprint(res.Fingerprint)

		status := StatusCreated
		if old, ok := known[res.Model]; ok {
			status = StatusUpdated
			if old == fp && fileExists(path) {
				status = StatusUnchanged
			}
		}
		if status != StatusUnchanged {
			if err := os.WriteFile(path, []byte(res.SQL), 0644); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write model").
					WithContext("path", path)
			}
		}

		out = append(out, FileResult{Model: res.Model, Path: path, Status: status})
		manifest.Models = append(manifest.Models, ManifestEntry{
			Object:      res.Object,
			Model:       res.Model,
			File:        file,
			Source:      res.Source,
			Columns:     res.Columns,
			Fingerprint: fp,
			Advisories:  res.Advisories,
		})
	}

	// Keep entries of models not part of this run so partial runs
	// (--object) do not forget the others.
	if previous != nil {
		current := map[string]bool{}
		for _, e := range manifest.Models {
			current[e.Model] = true
		}
		for _, e := range previous.Models {
			if !current[e.Model] {
				manifest.Models = append(manifest.Models, e)
			}
		}
	}
	sort.Slice(manifest.Models, func(i, j int) bool {
		return manifest.Models[i].Model < manifest.Models[j].Model
	})

	if previous != nil && reflect.DeepEqual(previous.Models, manifest.Models) {
		return out, nil
	}
	if err := writeManifest(w.dir, &manifest); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadManifest loads the manifest in dir; a missing manifest returns nil.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path) // #nosec G304 - path is built from the output dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "failed to read manifest").
			WithContext("path", path)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "manifest is corrupt").
			WithContext("path", path).
			WithSuggestions("Delete the manifest to regenerate every model")
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal manifest")
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write manifest").
			WithContext("path", path)
	}
	return nil
}

// FormatFingerprint renders a fingerprint as fixed-width hex.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
