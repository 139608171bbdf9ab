package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// File names inside the store directory
const (
	DocumentFile      = "core.json"
	RuleVersionMarker = "rules.version"
)

// Store reads and writes the persisted manifest files. The prior state
// is read once at run start and rewritten at most once at run end.
type Store struct {
	dir    string
	logger *logrus.Entry
}

func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: logrus.WithField("component", "manifest-store"),
	}
}

// LoadDocument reads the persisted core manifest. A missing file yields
// an empty document, not an error; every channel in it is then stale.
func (s *Store) LoadDocument() (*Document, error) {
	path := filepath.Join(s.dir, DocumentFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No previous core manifest, starting empty")
			return &Document{}, nil
		}
		return nil, fmt.Errorf("failed to read core manifest: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode core manifest: %w", err)
	}

	return &doc, nil
}

// SaveDocument writes the core manifest atomically.
func (s *Store) SaveDocument(doc *Document) error {
	return s.writeJSON(DocumentFile, doc)
}

// LoadRuleIndex reads the persisted index of one scope. A missing file
// yields an empty index.
func (s *Store) LoadRuleIndex(scope string) (*RuleIndex, error) {
	path := filepath.Join(s.dir, ruleIndexFile(scope))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleIndex{}, nil
		}
		return nil, fmt.Errorf("failed to read rule index %s: %w", scope, err)
	}

	var idx RuleIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to decode rule index %s: %w", scope, err)
	}

	return &idx, nil
}

// SaveRuleIndex writes the index of one scope atomically.
func (s *Store) SaveRuleIndex(scope string, idx *RuleIndex) error {
	return s.writeJSON(ruleIndexFile(scope), idx)
}

// LoadRuleVersion reads the plain-text version marker of the last
// processed rule tree. Missing marker reads as empty, which every
// freshly observed version differs from.
func (s *Store) LoadRuleVersion() string {
	data, err := os.ReadFile(filepath.Join(s.dir, RuleVersionMarker))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveRuleVersion writes the plain-text version marker.
func (s *Store) SaveRuleVersion(version string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	path := filepath.Join(s.dir, RuleVersionMarker)
	if err := os.WriteFile(path, []byte(version+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write version marker: %w", err)
	}

	return nil
}

// writeJSON marshals v indented for diff-friendliness and renames a
// temp file into place so consumers never observe a partial document.
func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":  name,
		"bytes": len(data),
	}).Info("Manifest file written")

	return nil
}

func ruleIndexFile(scope string) string {
	return fmt.Sprintf("rules-%s.json", scope)
}
