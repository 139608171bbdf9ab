package assets

import (
	"testing"
)

const prefix = "sing-box-"

func TestParseBasicPlatforms(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantOS   string
		wantArch string
	}{
		{"linux amd64", "sing-box-1.9.0-linux-amd64.tar.gz", "linux", "amd64"},
		{"windows zip", "sing-box-1.9.0-windows-amd64.zip", "windows", "amd64"},
		{"darwin renamed", "sing-box-darwin-amd64.zip", "macos", "amd64"},
		{"freebsd", "sing-box-1.9.0-freebsd-amd64.tar.gz", "freebsd", "amd64"},
		{"arm64", "sing-box-1.9.0-linux-arm64.tar.gz", "linux", "arm64"},
		{"tgz suffix", "sing-box-linux-386.tgz", "linux", "386"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, ok := Parse(tt.filename, prefix)
			if !ok {
				t.Fatalf("Parse(%q) rejected, want descriptor", tt.filename)
			}
			if desc.OS != tt.wantOS {
				t.Errorf("OS = %q, want %q", desc.OS, tt.wantOS)
			}
			if desc.Arch != tt.wantArch {
				t.Errorf("Arch = %q, want %q", desc.Arch, tt.wantArch)
			}
			if desc.Filename != tt.filename {
				t.Errorf("Filename = %q, want %q", desc.Filename, tt.filename)
			}
		})
	}
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantArch string
	}{
		{"legacy", "sing-box-1.9.0-linux-amd64-legacy.tar.gz", "amd64-legacy"},
		{"legacy with trailing tokens", "sing-box-darwin-amd64-legacy-macos-11.zip", "amd64-legacy"},
		{"softfloat", "sing-box-1.9.0-linux-mipsle-softfloat.tar.gz", "mipsle-softfloat"},
		{"verbatim fallback", "sing-box-1.9.0-linux-arm-v7.tar.gz", "arm-v7"},
		{"multi token fallback", "sing-box-linux-mips64-hardfloat-abi64.tar.gz", "mips64-hardfloat-abi64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, ok := Parse(tt.filename, prefix)
			if !ok {
				t.Fatalf("Parse(%q) rejected, want descriptor", tt.filename)
			}
			if desc.Arch != tt.wantArch {
				t.Errorf("Arch = %q, want %q", desc.Arch, tt.wantArch)
			}
		})
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{"android", "sing-box-1.9.0-android-arm64.zip"},
		{"ios", "sing-box-1.9.0-ios-arm64.zip"},
		{"sbom", "sing-box-1.9.0.sbom.json"},
		{"spdx", "sing-box-1.9.0-linux-amd64.spdx.zip"},
		{"deb package", "sing-box_1.9.0_linux_amd64.deb"},
		{"rpm package", "sing-box-1.9.0-linux-amd64.rpm"},
		{"apk package", "sing-box-1.9.0-linux-amd64.apk"},
		{"missing prefix", "other-tool-1.9.0-linux-amd64.tar.gz"},
		{"no archive suffix", "sing-box-1.9.0-linux-amd64.txt"},
		{"no os token", "sing-box-1.9.0-plan9-amd64.tar.gz"},
		{"near match not counted", "sing-box-1.9.0-win32-amd64.zip"},
		{"os token without arch", "sing-box-1.9.0-linux.tar.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if desc, ok := Parse(tt.filename, prefix); ok {
				t.Errorf("Parse(%q) = %+v, want rejection", tt.filename, desc)
			}
		})
	}
}

func TestParseNoVariantKeepsArch(t *testing.T) {
	desc, ok := Parse("sing-box-1.9.0-linux-s390x.tar.gz", prefix)
	if !ok {
		t.Fatal("Parse rejected valid filename")
	}
	if desc.Arch != "s390x" {
		t.Errorf("Arch = %q, want unchanged %q", desc.Arch, "s390x")
	}
}
