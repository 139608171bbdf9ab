package rules

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestIndexResolvesFormsAndCategories(t *testing.T) {
	paths := []string{
		"geo/geoip/cn.srs",
		"geo/geoip/cn.json",
		"geo/geosite/example.srs",
	}

	records := Index(paths, "geo/")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	cn := records[0]
	if cn.Name != "cn" {
		t.Fatalf("first record = %q, want cn", cn.Name)
	}
	if cn.Form != FormAll {
		t.Errorf("cn form = %q, want %q", cn.Form, FormAll)
	}
	if cn.Category != CategoryAddress {
		t.Errorf("cn category = %q, want %q", cn.Category, CategoryAddress)
	}
	wantFiles := []string{"geo/geoip/cn.json", "geo/geoip/cn.srs"}
	if len(cn.Files) != len(wantFiles) {
		t.Fatalf("cn has %d files, want %d", len(cn.Files), len(wantFiles))
	}
	for i, want := range wantFiles {
		if cn.Files[i].Path != want {
			t.Errorf("cn file[%d] = %q, want %q", i, cn.Files[i].Path, want)
		}
	}

	example := records[1]
	if example.Name != "example" {
		t.Fatalf("second record = %q, want example", example.Name)
	}
	if example.Form != FormBinary {
		t.Errorf("example form = %q, want %q", example.Form, FormBinary)
	}
	if example.Category != CategoryDomain {
		t.Errorf("example category = %q, want %q", example.Category, CategoryDomain)
	}
}

func TestIndexDiscards(t *testing.T) {
	paths := []string{
		"geo/geoip/cn.txt",       // unrecognized extension
		"geo/orphan.srs",         // only one segment past the prefix
		"other/geoip/us.srs",     // outside the prefix
		"geo/geosite/google.srs", // kept
	}

	records := Index(paths, "geo/")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Name != "google" {
		t.Errorf("record = %q, want google", records[0].Name)
	}
}

func TestIndexCategorySpansBothMarkers(t *testing.T) {
	paths := []string{
		"geo/geoip/private.srs",
		"geo/geosite/private.srs",
	}

	records := Index(paths, "geo/")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Category != CategoryAll {
		t.Errorf("category = %q, want %q", records[0].Category, CategoryAll)
	}
	if records[0].Form != FormBinary {
		t.Errorf("form = %q, want %q", records[0].Form, FormBinary)
	}
}

func TestIndexUnmatchedCategoryDefaultsToAll(t *testing.T) {
	records := Index([]string{"geo/experimental/novel.srs"}, "geo/")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Category != CategoryAll {
		t.Errorf("category = %q, want %q", records[0].Category, CategoryAll)
	}
}

func TestIndexDeterministicUnderPermutation(t *testing.T) {
	ordered := []string{
		"geo/geoip/cn.srs",
		"geo/geoip/cn.json",
		"geo/geosite/cn.srs",
		"geo/geosite/google.srs",
		"geo/geosite/google.json",
		"geo/geoip/us.srs",
	}
	permuted := []string{
		"geo/geosite/google.json",
		"geo/geoip/us.srs",
		"geo/geosite/cn.srs",
		"geo/geoip/cn.json",
		"geo/geosite/google.srs",
		"geo/geoip/cn.srs",
	}

	a, err := json.Marshal(Index(ordered, "geo/"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(Index(permuted, "geo/"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("permuted input produced different output:\n%s\n%s", a, b)
	}
}

func TestBuildIndexHomogeneous(t *testing.T) {
	both := Index([]string{
		"geo/geoip/cn.srs",
		"geo/geoip/cn.json",
	}, "geo/")
	idx := BuildIndex(both, "20240829120000", "https://example.com/rules", "https://raw.example.com/rules")
	if !idx.Homogeneous {
		t.Error("index with every record in both forms should be homogeneous")
	}
	if idx.Version != "20240829120000" {
		t.Errorf("version = %q", idx.Version)
	}
	if len(idx.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(idx.Rules))
	}

	single := Index([]string{"geo/geoip/cn.srs"}, "geo/")
	if BuildIndex(single, "v", "", "").Homogeneous {
		t.Error("index with a binary-only record should not be homogeneous")
	}
}
