package signal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmitToRunnerOutputFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", outFile)

	emitter, err := NewEmitter()
	if err != nil {
		t.Fatalf("NewEmitter() error = %v", err)
	}

	if err := emitter.EmitChannel("stable", true); err != nil {
		t.Fatal(err)
	}
	if err := emitter.EmitChannel("alpha", false); err != nil {
		t.Fatal(err)
	}
	if err := emitter.Emit("manifest_changed", true); err != nil {
		t.Fatal(err)
	}
	if err := emitter.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}

	want := "stable_publish=true\nstable_changed=true\nalpha_publish=false\nalpha_changed=false\nmanifest_changed=true\n"
	if string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}
}

func TestEmitAppendsAcrossEmitters(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", outFile)

	for i := 0; i < 2; i++ {
		emitter, err := NewEmitter()
		if err != nil {
			t.Fatal(err)
		}
		if err := emitter.Emit("rules_changed", true); err != nil {
			t.Fatal(err)
		}
		if err := emitter.Close(); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "rules_changed=true\nrules_changed=true\n" {
		t.Errorf("output = %q", data)
	}
}
