package manifest

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func prevDocument() *Document {
	return &Document{
		UpdatedAt: "2024-08-01T00:00:00Z",
		Stable: Channel{
			Version: "1.9.0",
			Tag:     "v1.9.0",
			Downloads: DownloadMap{
				"linux": {"amd64": "https://example.com/core-linux-amd64.zip"},
			},
		},
		Alpha: Channel{
			Version: "1.10.0-alpha.1",
			Tag:     "v1.10.0-alpha.1",
			Downloads: DownloadMap{
				"linux": {"amd64": "https://example.com/alpha-core-linux-amd64.zip"},
			},
		},
	}
}

func TestChannelStale(t *testing.T) {
	gate := NewGate(prevDocument(), "")

	if gate.ChannelStale(ChannelStable, "v1.9.0") {
		t.Error("unchanged tag should not be stale")
	}
	if !gate.ChannelStale(ChannelStable, "v1.9.1") {
		t.Error("changed tag should be stale")
	}

	empty := prevDocument()
	empty.Stable.Downloads = DownloadMap{}
	if !NewGate(empty, "").ChannelStale(ChannelStable, "v1.9.0") {
		t.Error("structurally empty previous channel should be stale")
	}

	if !NewGate(&Document{}, "").ChannelStale(ChannelStable, "v1.9.0") {
		t.Error("missing previous channel should be stale")
	}
}

func TestRulesStale(t *testing.T) {
	gate := NewGate(&Document{}, "20240829000000")

	if gate.RulesStale("20240829000000", false) {
		t.Error("unchanged version should not be stale")
	}
	if !gate.RulesStale("20240830000000", false) {
		t.Error("changed version should be stale")
	}
	if !gate.RulesStale("20240829000000", true) {
		t.Error("empty previous index should be stale")
	}

	if !NewGate(&Document{}, "").RulesStale("20240830000000", false) {
		t.Error("missing marker should be stale")
	}
}

func TestMergeNothingChangedReturnsPrevUntouched(t *testing.T) {
	prev := prevDocument()
	before, err := json.Marshal(prev)
	if err != nil {
		t.Fatal(err)
	}

	doc, changed := NewGate(prev, "").Merge(map[string]*Channel{
		ChannelStable: nil,
		ChannelAlpha:  nil,
	}, time.Now())

	if changed {
		t.Error("no updates should report unchanged")
	}
	if doc != prev {
		t.Error("unchanged merge should hand back the previous document")
	}

	after, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("document mutated:\n%s\n%s", before, after)
	}
}

func TestMergeReplacesOnlyUpdatedChannel(t *testing.T) {
	prev := prevDocument()
	prevAlpha, err := json.Marshal(prev.Alpha)
	if err != nil {
		t.Fatal(err)
	}

	fresh := &Channel{
		Version: "1.9.1",
		Tag:     "v1.9.1",
		Downloads: DownloadMap{
			"linux": {"amd64": "https://example.com/new"},
		},
	}
	now := time.Date(2024, 8, 29, 12, 0, 0, 0, time.UTC)

	doc, changed := NewGate(prev, "").Merge(map[string]*Channel{
		ChannelStable: fresh,
		ChannelAlpha:  nil,
	}, now)

	if !changed {
		t.Fatal("update should report changed")
	}
	if doc.Stable.Tag != "v1.9.1" {
		t.Errorf("stable tag = %q, want v1.9.1", doc.Stable.Tag)
	}
	if doc.UpdatedAt != "2024-08-29T12:00:00Z" {
		t.Errorf("updated_at = %q", doc.UpdatedAt)
	}

	// The untouched sibling channel must pass through byte-identical.
	mergedAlpha, err := json.Marshal(doc.Alpha)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(prevAlpha, mergedAlpha) {
		t.Errorf("alpha channel changed:\n%s\n%s", prevAlpha, mergedAlpha)
	}
}
