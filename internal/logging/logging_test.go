package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
)

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New("nwbuild", Options{Level: hclog.Info, Output: &buf})
	logger.Debug("hidden")
	logger.Info("runtime cached", "key", "nwjs-v0.82.0-linux-x64")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line must be filtered: %q", out)
	}
	if !strings.Contains(out, "[INFO]  nwbuild: runtime cached: key=nwjs-v0.82.0-linux-x64") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewDefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New("nwbuild", Options{Output: &buf})
	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New("nwbuild", Options{Level: hclog.Warn, JSON: true, Output: &buf})
	logger.Warn("could not cache manifest", "path", "/tmp/manifest.json")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["@message"] != "could not cache manifest" || line["path"] != "/tmp/manifest.json" {
		t.Fatalf("unexpected line %#v", line)
	}
	if line["@module"] != "nwbuild" {
		t.Fatalf("unexpected module %#v", line["@module"])
	}
}
