// Package rules turns a flat repository file listing into deduplicated,
// type-resolved rule records with deterministic ordering.
package rules

import (
	"path"
	"sort"
	"strings"

	"github.com/portalmesh/relmeta/internal/manifest"
)

// Forms a rule file can take.
const (
	FormBinary = "binary"
	FormSource = "source"
	FormAll    = "all"
)

// Categories a rule record can resolve to.
const (
	CategoryAddress = "geoip"
	CategoryDomain  = "geosite"
	CategoryAll     = "all"
)

// File is one repository file backing a rule record.
type File struct {
	Path     string
	Form     string
	Category string
}

// Record is a logical named rule unit, potentially backed by several
// files of different forms. Form and category are least upper bounds
// over everything observed for the name.
type Record struct {
	Name     string
	Form     string
	Category string
	Files    []File
}

// formExtensions maps recognized file extensions to forms. Anything
// else in the tree is not a rule file.
var formExtensions = map[string]string{
	".srs":  FormBinary,
	".json": FormSource,
}

// categoryMarkers classifies the first path segment by substring,
// evaluated top to bottom. A segment matching no marker leaves the file
// unclassified; resolution later defaults such names to "all".
var categoryMarkers = []struct {
	marker   string
	category string
}{
	{"ip", CategoryAddress},
	{"addr", CategoryAddress},
	{"site", CategoryDomain},
	{"domain", CategoryDomain},
}

// Index builds the ordered record list for one scope. Paths outside the
// prefix, with unrecognized extensions, or with fewer than two segments
// past the prefix are discarded. Output ordering is deterministic:
// records sorted by name, files sorted by path, independent of input
// order.
func Index(paths []string, prefix string) []Record {
	type accum struct {
		forms      map[string]bool
		categories map[string]bool
		matched    bool
		files      []File
	}
	byName := make(map[string]*accum)

	for _, p := range paths {
		if !strings.HasPrefix(p, prefix) {
			continue
		}

		ext := path.Ext(p)
		form, ok := formExtensions[ext]
		if !ok {
			continue
		}

		rel := strings.TrimPrefix(p, prefix)
		segments := strings.Split(rel, "/")
		if len(segments) < 2 {
			continue
		}

		category, matched := classifySegment(segments[0])
		name := strings.TrimSuffix(path.Base(p), ext)

		acc := byName[name]
		if acc == nil {
			acc = &accum{
				forms:      make(map[string]bool),
				categories: make(map[string]bool),
			}
			byName[name] = acc
		}
		acc.forms[form] = true
		if matched {
			acc.categories[category] = true
			acc.matched = true
		}
		acc.files = append(acc.files, File{
			Path:     p,
			Form:     form,
			Category: category,
		})
	}

	records := make([]Record, 0, len(byName))
	for name, acc := range byName {
		sort.Slice(acc.files, func(i, j int) bool {
			return acc.files[i].Path < acc.files[j].Path
		})
		records = append(records, Record{
			Name:     name,
			Form:     resolveForm(acc.forms),
			Category: resolveCategory(acc.categories, acc.matched),
			Files:    acc.files,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})

	return records
}

// BuildIndex wraps resolved records into the persisted index form,
// dropping the per-record file lists. Homogeneous means every record
// is available in both forms.
func BuildIndex(records []Record, version, baseURL, rawBaseURL string) *manifest.RuleIndex {
	idx := &manifest.RuleIndex{
		Version:     version,
		BaseURL:     baseURL,
		RawBaseURL:  rawBaseURL,
		Homogeneous: true,
		Rules:       make([]manifest.RuleEntry, 0, len(records)),
	}

	for _, rec := range records {
		if rec.Form != FormAll {
			idx.Homogeneous = false
		}
		idx.Rules = append(idx.Rules, manifest.RuleEntry{
			Name:     rec.Name,
			Form:     rec.Form,
			Category: rec.Category,
		})
	}

	return idx
}

func classifySegment(segment string) (string, bool) {
	for _, m := range categoryMarkers {
		if strings.Contains(segment, m.marker) {
			return m.category, true
		}
	}
	return "", false
}

// resolveForm is the least upper bound over observed forms.
func resolveForm(seen map[string]bool) string {
	if seen[FormBinary] && seen[FormSource] {
		return FormAll
	}
	if seen[FormBinary] {
		return FormBinary
	}
	return FormSource
}

// resolveCategory is the least upper bound over observed categories.
// A name whose files matched no marker at all resolves to "all" rather
// than being discarded, so newly introduced directories keep working.
func resolveCategory(seen map[string]bool, matched bool) string {
	if !matched {
		return CategoryAll
	}
	if seen[CategoryAddress] && seen[CategoryDomain] {
		return CategoryAll
	}
	if seen[CategoryAddress] {
		return CategoryAddress
	}
	return CategoryDomain
}
