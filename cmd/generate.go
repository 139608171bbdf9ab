package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/portalmesh/relmeta/internal/channel"
	"github.com/portalmesh/relmeta/internal/manifest"
	"github.com/portalmesh/relmeta/internal/rules"
	"github.com/portalmesh/relmeta/internal/signal"
	"github.com/portalmesh/relmeta/internal/upstream"
	"github.com/portalmesh/relmeta/pkg/logger"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate the core manifest and rule-set indices",
	Long: `Fetch upstream release and rule-tree metadata, recompute the
channels and scopes whose versions changed, and rewrite the persisted
manifests. Unchanged channels are carried over untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger("generate")
		return NewRunner(log).Run(cmd.Context())
	},
}

func init() {
	RootCmd.AddCommand(generateCmd)
}

// Runner drives one full generation run. Channels and scopes are
// processed strictly sequentially; persisted state is read once at the
// start and written at most once at the end.
type Runner struct {
	log       *logger.Logger
	store     *manifest.Store
	client    *upstream.Client
	processor *channel.Processor
}

func NewRunner(log *logger.Logger) *Runner {
	return &Runner{
		log:   log,
		store: manifest.NewStore(Cfg.Output.Dir),
		client: upstream.NewClient(upstream.Options{
			APIBase:           Cfg.Upstream.APIBase,
			MaxAttempts:       Cfg.Upstream.MaxAttempts,
			RetryDelay:        Cfg.Upstream.RetryDelayDuration(),
			RequestsPerSecond: Cfg.Upstream.RequestsPerSecond,
			UserAgent:         "relmeta/" + Version,
		}),
		processor: channel.NewProcessor(channel.Options{
			Host:        Cfg.Output.Host,
			ChannelRepo: Cfg.Output.ChannelRepo,
			AssetPrefix: Cfg.Upstream.AssetPrefix,
			BinaryName:  Cfg.Upstream.BinaryName,
			DistDir:     Cfg.Output.DistDir,
		}),
	}
}

// Run executes one generation pass.
func (r *Runner) Run(ctx context.Context) error {
	prev, err := r.store.LoadDocument()
	if err != nil {
		return err
	}
	gate := manifest.NewGate(prev, r.store.LoadRuleVersion())

	updates, err := r.processChannels(ctx, gate)
	if err != nil {
		return err
	}

	freshRuleVersion, indices, err := r.processRules(ctx, gate)
	if err != nil {
		return err
	}
	rulesChanged := len(indices) > 0

	// All-or-nothing: nothing above this point has touched the
	// persisted files.
	doc, manifestChanged := gate.Merge(updates, time.Now())
	if manifestChanged {
		if err := r.store.SaveDocument(doc); err != nil {
			return err
		}
	}
	if rulesChanged {
		for scope, idx := range indices {
			if err := r.store.SaveRuleIndex(scope, idx); err != nil {
				return err
			}
		}
		if err := r.store.SaveRuleVersion(freshRuleVersion); err != nil {
			return err
		}
	}

	return r.emitSignals(updates, rulesChanged, manifestChanged)
}

// processChannels fetches release metadata per channel and recomputes
// the stale ones. A nil map entry means the channel carries over.
func (r *Runner) processChannels(ctx context.Context, gate *manifest.Gate) (map[string]*manifest.Channel, error) {
	type channelFetch struct {
		name  string
		fetch func(context.Context, string) (*upstream.Release, error)
	}
	fetches := []channelFetch{
		{manifest.ChannelStable, r.client.LatestRelease},
		{manifest.ChannelAlpha, r.client.LatestPrerelease},
	}

	updates := make(map[string]*manifest.Channel, len(fetches))
	metadataSeen := false

	for _, cf := range fetches {
		updates[cf.name] = nil

		release, err := cf.fetch(ctx, Cfg.Upstream.CoreRepo)
		if err != nil {
			if errors.Is(err, upstream.ErrNotFound) || errors.Is(err, upstream.ErrUnavailable) {
				r.log.WithError(err).Warnf("No release metadata for %s channel, keeping previous state", cf.name)
				continue
			}
			return nil, err
		}
		metadataSeen = true

		if !gate.ChannelStale(cf.name, release.TagName) {
			r.log.Infof("Channel %s unchanged at %s", cf.name, release.TagName)
			continue
		}

		ch, err := r.processor.Process(ctx, release, cf.name)
		if err != nil {
			return nil, err
		}
		updates[cf.name] = ch
	}

	if !metadataSeen {
		return nil, fmt.Errorf("no usable release metadata for any channel")
	}

	return updates, nil
}

// processRules re-indexes the rule scopes when the tree version moved.
// An empty result map means nothing needs rewriting.
func (r *Runner) processRules(ctx context.Context, gate *manifest.Gate) (string, map[string]*manifest.RuleIndex, error) {
	fresh, err := r.client.HeadVersion(ctx, Cfg.Upstream.RulesRepo, Cfg.Upstream.RulesBranch)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) || errors.Is(err, upstream.ErrUnavailable) {
			r.log.WithError(err).Warn("No rule-tree metadata, keeping previous indices")
			return "", nil, nil
		}
		return "", nil, err
	}

	prevEmpty := false
	for _, scope := range Cfg.Rules.Scopes {
		idx, err := r.store.LoadRuleIndex(scope.Name)
		if err != nil {
			return "", nil, err
		}
		if len(idx.Rules) == 0 {
			prevEmpty = true
		}
	}

	if !gate.RulesStale(fresh, prevEmpty) {
		r.log.Infof("Rule tree unchanged at %s", fresh)
		return "", nil, nil
	}

	paths, err := r.client.Tree(ctx, Cfg.Upstream.RulesRepo, Cfg.Upstream.RulesBranch)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) || errors.Is(err, upstream.ErrUnavailable) {
			r.log.WithError(err).Warn("No rule-tree listing, keeping previous indices")
			return "", nil, nil
		}
		return "", nil, err
	}

	baseURL := fmt.Sprintf("%s/%s", Cfg.Output.Host, Cfg.Upstream.RulesRepo)
	rawBaseURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s", Cfg.Upstream.RulesRepo, Cfg.Upstream.RulesBranch)

	indices := make(map[string]*manifest.RuleIndex, len(Cfg.Rules.Scopes))
	total := 0
	for _, scope := range Cfg.Rules.Scopes {
		records := rules.Index(paths, scope.Prefix)
		total += len(records)
		indices[scope.Name] = rules.BuildIndex(records, fresh, baseURL, rawBaseURL)
		r.log.Infof("Scope %s indexed: %d records", scope.Name, len(records))
	}
	if total == 0 {
		return "", nil, fmt.Errorf("no rule records discovered in any scope")
	}

	return fresh, indices, nil
}

func (r *Runner) emitSignals(updates map[string]*manifest.Channel, rulesChanged, manifestChanged bool) error {
	emitter, err := signal.NewEmitter()
	if err != nil {
		return err
	}
	defer emitter.Close()

	for _, name := range []string{manifest.ChannelStable, manifest.ChannelAlpha} {
		if err := emitter.EmitChannel(name, updates[name] != nil); err != nil {
			return err
		}
	}
	if err := emitter.Emit("rules_changed", rulesChanged); err != nil {
		return err
	}
	return emitter.Emit("manifest_changed", manifestChanged || rulesChanged)
}
