package manifest

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Gate decides per channel and per rule scope whether recomputation is
// needed, and merges fresh results into the previous run's state.
// Channels are gated independently: an unchanged channel is carried over
// untouched even when its sibling is rebuilt in the same run.
type Gate struct {
	prev      *Document
	prevRules string
	logger    *logrus.Entry
}

func NewGate(prev *Document, prevRuleVersion string) *Gate {
	return &Gate{
		prev:      prev,
		prevRules: prevRuleVersion,
		logger:    logrus.WithField("component", "version-gate"),
	}
}

// ChannelStale reports whether the named channel must be recomputed for
// the freshly observed release tag. A previously empty channel is always
// stale: an earlier run that found no downloads gets retried.
func (g *Gate) ChannelStale(name, freshTag string) bool {
	prev := g.prev.Channel(name)
	if prev == nil || prev.Empty() {
		return true
	}
	if prev.Tag != freshTag {
		g.logger.WithFields(logrus.Fields{
			"channel": name,
			"old":     prev.Tag,
			"new":     freshTag,
		}).Info("Channel tag changed")
		return true
	}
	return false
}

// RulesStale reports whether the rule scopes must be re-indexed for the
// freshly observed tree version. A previous index with no records counts
// as structurally empty and forces recomputation.
func (g *Gate) RulesStale(freshVersion string, prevEmpty bool) bool {
	if prevEmpty || g.prevRules == "" {
		return true
	}
	if g.prevRules != freshVersion {
		g.logger.WithFields(logrus.Fields{
			"old": g.prevRules,
			"new": freshVersion,
		}).Info("Rule tree version changed")
		return true
	}
	return false
}

// Merge folds recomputed channels into the previous document. A nil
// entry in updates means the channel is carried over unchanged. The
// returned bool reports whether anything was recomputed; when it is
// false the returned document is the previous one, untouched, and
// nothing should be written.
func (g *Gate) Merge(updates map[string]*Channel, now time.Time) (*Document, bool) {
	changed := false
	for _, ch := range updates {
		if ch != nil {
			changed = true
		}
	}
	if !changed {
		return g.prev, false
	}

	// Unaffected channels copy through from the prior document.
	doc := &Document{
		UpdatedAt: now.UTC().Format(time.RFC3339),
		Stable:    g.prev.Stable,
		Alpha:     g.prev.Alpha,
	}
	for name, ch := range updates {
		if ch == nil {
			continue
		}
		if target := doc.Channel(name); target != nil {
			*target = *ch
		}
	}

	return doc, true
}
