// Package artifact is the per-asset processing pipeline: transfer,
// unpack, locate the core binary, repackage it canonically. Every stage
// failure is recoverable for the caller; the affected asset is skipped.
package artifact

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const downloadTimeout = 300 * time.Second

// Pipeline downloads and repackages release assets. Transfers run
// through a circuit breaker so that a flaky upstream makes the
// remaining assets of a run fail fast instead of each burning the full
// timeout.
type Pipeline struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Entry
}

func NewPipeline() *Pipeline {
	logger := logrus.WithField("component", "artifact-pipeline")

	breakerSettings := gobreaker.Settings{
		Name:    "asset-transfer",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("Circuit breaker state changed from %v to %v", from, to)
		},
	}

	return &Pipeline{
		httpClient: &http.Client{Timeout: downloadTimeout},
		breaker:    gobreaker.NewCircuitBreaker(breakerSettings),
		logger:     logger,
	}
}

// Fetch downloads the asset into workdir and unpacks it, returning the
// extracted tree root. The workdir is owned by the caller and shared
// across the channel's assets, so every asset gets its own subtree.
func (p *Pipeline) Fetch(ctx context.Context, rawURL, workdir string) (string, error) {
	name := assetBaseName(rawURL)
	archivePath := filepath.Join(workdir, name)

	p.logger.WithFields(logrus.Fields{
		"url":  rawURL,
		"dest": archivePath,
	}).Debug("Downloading asset")

	if _, err := p.breaker.Execute(func() (any, error) {
		return nil, p.download(ctx, rawURL, archivePath)
	}); err != nil {
		return "", fmt.Errorf("failed to download asset: %w", err)
	}

	extractDir := filepath.Join(workdir, "unpacked-"+strings.TrimSuffix(name, path.Ext(name)))
	if err := extractArchive(archivePath, extractDir); err != nil {
		return "", fmt.Errorf("failed to unpack asset: %w", err)
	}

	return extractDir, nil
}

// LocateBinary walks the extracted tree for the named binary. Windows
// builds carry an .exe suffix.
func (p *Pipeline) LocateBinary(root, name string) (string, error) {
	var found string

	err := filepath.WalkDir(root, func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if base == name || base == name+".exe" {
			found = entryPath
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan extracted tree: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("binary %s not found under %s", name, root)
	}

	return found, nil
}

// Repackage writes the located binary into a fresh single-entry zip
// named core-{os}-{arch}.zip. The entry is stored as "core" so the
// client unpacks the same name on every platform.
func (p *Pipeline) Repackage(binPath, outDir, osName, arch string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	outPath := filepath.Join(outDir, CanonicalArchiveName(osName, arch))
	outFile, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer outFile.Close()

	entryName := "core"
	if strings.HasSuffix(binPath, ".exe") {
		entryName = "core.exe"
	}

	writer := zip.NewWriter(outFile)
	header := &zip.FileHeader{
		Name:   entryName,
		Method: zip.Deflate,
	}
	header.SetMode(0755)

	entry, err := writer.CreateHeader(header)
	if err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to create archive entry: %w", err)
	}

	binFile, err := os.Open(binPath)
	if err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to open binary: %w", err)
	}
	defer binFile.Close()

	if _, err := io.Copy(entry, binFile); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write archive entry: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	p.logger.WithField("archive", outPath).Debug("Asset repackaged")
	return outPath, nil
}

// CanonicalArchiveName is the predictable artifact name the client
// downloads, decoupled from upstream's per-release naming.
func CanonicalArchiveName(osName, arch string) string {
	return fmt.Sprintf("core-%s-%s.zip", osName, arch)
}

func (p *Pipeline) download(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(destFile, resp.Body); err != nil {
		destFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to save file: %w", err)
	}

	return destFile.Close()
}

func assetBaseName(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		if base := path.Base(parsed.Path); base != "." && base != "/" {
			return base
		}
	}
	return "asset.bin"
}
