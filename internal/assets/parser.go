// Package assets normalizes upstream release-asset filenames into
// canonical platform descriptors. Upstream naming is free-form; the
// client only ever sees the small canonical vocabulary produced here.
package assets

import (
	"strings"
)

// PlatformDescriptor is the canonical (os, arch) key for one build.
type PlatformDescriptor struct {
	OS       string
	Arch     string
	Filename string
}

// Canonical OS names. Upstream's "darwin" is renamed "macos" because
// the externally meaningful name differs from the build identifier.
const (
	OSWindows = "windows"
	OSMacOS   = "macos"
	OSLinux   = "linux"
	OSFreeBSD = "freebsd"
)

// osVocabulary maps recognized upstream OS tokens to canonical names.
// Tokens must match exactly; near-matches like "win32" do not count.
var osVocabulary = map[string]string{
	"windows": OSWindows,
	"darwin":  OSMacOS,
	"linux":   OSLinux,
	"freebsd": OSFreeBSD,
}

// rejectMarkers lists substrings that disqualify an asset outright:
// mobile targets, SBOM artifacts and package-manager formats are not
// downloadable core builds.
var rejectMarkers = []string{
	"android",
	"ios",
	"sbom",
	".spdx",
	".deb",
	".rpm",
	".apk",
	".pkg.tar",
}

// archiveSuffixes lists the recognized archive extensions, matched
// longest first.
var archiveSuffixes = []string{
	".tar.gz",
	".tgz",
	".zip",
}

// variantRules normalizes the trailing variant tokens, evaluated top to
// bottom with first match winning. The final verbatim fallback keeps
// unseen variants addressable instead of dropping them.
var variantRules = []struct {
	match  func(tokens []string) bool
	suffix func(variant string) string
}{
	{
		match:  func(tokens []string) bool { return containsToken(tokens, "legacy") },
		suffix: func(string) string { return "legacy" },
	},
	{
		match:  func(tokens []string) bool { return containsToken(tokens, "softfloat") },
		suffix: func(string) string { return "softfloat" },
	},
	{
		match:  func([]string) bool { return true },
		suffix: func(variant string) string { return variant },
	},
}

// Parse classifies one upstream asset filename. The second return value
// is false when the asset is not an addressable core build; Parse never
// fails harder than that.
func Parse(filename, prefix string) (*PlatformDescriptor, bool) {
	lower := strings.ToLower(filename)

	for _, marker := range rejectMarkers {
		if strings.Contains(lower, marker) {
			return nil, false
		}
	}

	if !strings.HasPrefix(lower, prefix) {
		return nil, false
	}

	stem, ok := trimArchiveSuffix(strings.TrimPrefix(lower, prefix))
	if !ok {
		return nil, false
	}

	// Scan for the OS token: version numbers and other noise may sit
	// between the prefix and the platform part.
	tokens := strings.Split(stem, "-")
	osIdx := -1
	canonical := ""
	for i, tok := range tokens {
		if name, found := osVocabulary[tok]; found {
			osIdx = i
			canonical = name
			break
		}
	}
	if osIdx < 0 || osIdx+1 >= len(tokens) {
		return nil, false
	}

	arch := tokens[osIdx+1]
	if arch == "" {
		return nil, false
	}

	if variantTokens := tokens[osIdx+2:]; len(variantTokens) > 0 {
		variant := strings.Join(variantTokens, "-")
		for _, rule := range variantRules {
			if rule.match(variantTokens) {
				arch = arch + "-" + rule.suffix(variant)
				break
			}
		}
	}

	return &PlatformDescriptor{
		OS:       canonical,
		Arch:     arch,
		Filename: filename,
	}, true
}

func trimArchiveSuffix(name string) (string, bool) {
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix), true
		}
	}
	return "", false
}

func containsToken(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}
