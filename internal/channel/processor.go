// Package channel turns one upstream release into a per-platform
// download map, delegating byte-level work to the artifact pipeline.
package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/portalmesh/relmeta/internal/artifact"
	"github.com/portalmesh/relmeta/internal/assets"
	"github.com/portalmesh/relmeta/internal/manifest"
	"github.com/portalmesh/relmeta/internal/upstream"
)

// Options configures channel processing.
type Options struct {
	// Host and ChannelRepo form the canonical download URL base; the
	// repackaged archives are published there by the CI runner.
	Host        string
	ChannelRepo string
	// AssetPrefix is the fixed upstream asset filename prefix.
	AssetPrefix string
	// BinaryName is the executable to locate inside unpacked assets.
	BinaryName string
	// DistDir receives the repackaged archives.
	DistDir string
}

// Processor assembles one channel manifest per release. Channels run
// strictly one at a time: each run owns a working directory shared by
// its sequential per-asset steps, so concurrent processing would race
// on it.
type Processor struct {
	pipeline *artifact.Pipeline
	opts     Options
	logger   *logrus.Entry
}

func NewProcessor(opts Options) *Processor {
	return &Processor{
		pipeline: artifact.NewPipeline(),
		opts:     opts,
		logger:   logrus.WithField("component", "channel-processor"),
	}
}

// Process consumes the release's asset list and returns the channel
// manifest. Per-asset failures (classification miss, transfer, unpack,
// binary not found) skip that asset and continue; a channel where every
// asset failed yields an empty, still valid, download map.
func (p *Processor) Process(ctx context.Context, release *upstream.Release, channelName string) (*manifest.Channel, error) {
	workdir := filepath.Join(os.TempDir(), fmt.Sprintf("relmeta-%s-%s", channelName, uuid.New().String()))
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workdir)

	log := p.logger.WithFields(logrus.Fields{
		"channel": channelName,
		"tag":     release.TagName,
	})
	log.WithField("assets", len(release.Assets)).Info("Processing release channel")

	downloads := make(manifest.DownloadMap)
	for _, asset := range release.Assets {
		desc, ok := assets.Parse(asset.Name, p.opts.AssetPrefix)
		if !ok {
			log.WithField("asset", asset.Name).Warn("Asset not classifiable, skipping")
			continue
		}

		root, err := p.pipeline.Fetch(ctx, asset.BrowserDownloadURL, workdir)
		if err != nil {
			log.WithField("asset", asset.Name).WithError(err).Warn("Asset transfer failed, skipping")
			continue
		}

		binPath, err := p.pipeline.LocateBinary(root, p.opts.BinaryName)
		if err != nil {
			log.WithField("asset", asset.Name).WithError(err).Warn("Binary not found in asset, skipping")
			continue
		}

		if _, err := p.pipeline.Repackage(binPath, p.opts.DistDir, desc.OS, desc.Arch); err != nil {
			log.WithField("asset", asset.Name).WithError(err).Warn("Repackaging failed, skipping")
			continue
		}

		// Last write wins on duplicate platform keys; noted but not an
		// error.
		if downloads.Has(desc.OS, desc.Arch) {
			log.WithFields(logrus.Fields{
				"os":   desc.OS,
				"arch": desc.Arch,
			}).Warn("Duplicate platform key, overwriting earlier asset")
		}
		downloads.Set(desc.OS, desc.Arch, p.downloadURL(release.TagName, desc))
	}

	log.WithField("downloads", downloads.Len()).Info("Channel processed")

	return &manifest.Channel{
		Version:   strings.TrimPrefix(release.TagName, "v"),
		Tag:       release.TagName,
		Downloads: downloads,
	}, nil
}

// downloadURL is the canonical, internally constructed artifact URL.
// The client's download surface stays stable regardless of upstream's
// per-release naming.
func (p *Processor) downloadURL(tag string, desc *assets.PlatformDescriptor) string {
	return fmt.Sprintf("%s/%s/releases/download/%s/%s",
		strings.TrimRight(p.opts.Host, "/"), p.opts.ChannelRepo, tag,
		artifact.CanonicalArchiveName(desc.OS, desc.Arch))
}
