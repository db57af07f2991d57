package accel

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/vcp/internal/vcp"
)

var accelNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestPureCodecMatchesEncoder(t *testing.T) {
	Reset()
	ctx := vcp.NewContext(vcp.NewContextOptions{ProfileID: "user-accel", Goal: "learn cello"}, accelNow)

	lines, err := PureCodec{}.Encode(ctx, accelNow)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := vcp.EncodeCSM1(ctx, accelNow)
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i := range lines {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLoadEmptyPathSelectsPure(t *testing.T) {
	Reset()
	codec := Load("")
	if codec.Name() != "pure" {
		t.Errorf("codec = %s, want pure", codec.Name())
	}
}

func TestLoadMissingHelperFallsBack(t *testing.T) {
	Reset()
	codec := Load(filepath.Join(t.TempDir(), "no-such-helper"))
	if codec.Name() != "pure" {
		t.Errorf("codec = %s, want pure after failed probe", codec.Name())
	}
}

func TestLoadOutcomeSticks(t *testing.T) {
	Reset()
	first := Load(filepath.Join(t.TempDir(), "no-such-helper"))
	// A later call with a different path must not re-probe.
	second := Load("/also/missing")
	if first.Name() != second.Name() {
		t.Errorf("codec changed between loads: %s then %s", first.Name(), second.Name())
	}
}

func TestEncodeAlwaysProducesToken(t *testing.T) {
	Reset()
	ctx := vcp.NewContext(vcp.NewContextOptions{ProfileID: "user-accel"}, accelNow)

	lines := Encode(filepath.Join(t.TempDir(), "no-such-helper"), ctx, accelNow)
	if len(lines) == 0 {
		t.Fatal("no token lines")
	}
	if !strings.HasPrefix(lines[0], "VCP:") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestLoadWorkingHelper(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell helper script")
	}
	Reset()

	// A helper that answers every request with a fixed single-line token.
	script := filepath.Join(t.TempDir(), "helper.sh")
	body := "#!/bin/sh\ncat > /dev/null\necho '{\"lines\":[\"VCP:1.0.0:user-helper\"]}'\n"
	if err := os.WriteFile(script, []byte(body), 0o700); err != nil {
		t.Fatalf("write helper: %v", err)
	}

	codec := Load(script)
	if codec.Name() != "exec" {
		t.Fatalf("codec = %s, want exec", codec.Name())
	}

	ctx := vcp.NewContext(vcp.NewContextOptions{ProfileID: "user-accel"}, accelNow)
	lines := Encode(script, ctx, accelNow)
	if len(lines) != 1 || lines[0] != "VCP:1.0.0:user-helper" {
		t.Errorf("lines = %v", lines)
	}
}

func TestHelperErrorResponseFallsBack(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell helper script")
	}
	Reset()

	script := filepath.Join(t.TempDir(), "helper.sh")
	body := "#!/bin/sh\ncat > /dev/null\necho '{\"error\":\"unsupported version\"}'\n"
	if err := os.WriteFile(script, []byte(body), 0o700); err != nil {
		t.Fatalf("write helper: %v", err)
	}

	codec := Load(script)
	if codec.Name() != "pure" {
		t.Errorf("codec = %s, want pure when the helper reports errors", codec.Name())
	}
}
