package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	def := NewDefaultConfig()
	require.Equal(t, def.TargetFPS, cfg.GetFPS())
	require.Equal(t, def.Detector.URL, cfg.Detector.URL)
	w, h := cfg.GetDisplaySize()
	require.Equal(t, 700, w)
	require.Equal(t, 500, h)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"target_fps": 10, "detector": {"url": "ws://detector:9000/ws", "confidence": 0.5}, "webcam": {"device_id": "/dev/video2"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint(10), cfg.GetFPS())
	require.Equal(t, "ws://detector:9000/ws", cfg.Detector.URL)
	require.InDelta(t, 0.5, cfg.GetConfidence(), 1e-6)
	require.Equal(t, "/dev/video2", cfg.GetDeviceID())
	// untouched keys keep their defaults
	require.Equal(t, 640, cfg.GetWidth())
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ANNOTATOR_DETECTOR_URL", "ws://env-host/ws")
	t.Setenv("ANNOTATOR_TARGET_FPS", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "ws://env-host/ws", cfg.Detector.URL)
	require.Equal(t, uint(5), cfg.GetFPS())
}

func TestLoadBrokenFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	cfg, err := Load(path)
	require.Error(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, NewDefaultConfig().TargetFPS, cfg.GetFPS())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := NewDefaultConfig()
	cfg.SetFPS(12)
	cfg.SetLocalPath("/videos/demo.mp4")
	cfg.SetSource(SourceLocal)
	require.NoError(t, cfg.Save(path))

	// a shorter second save must not leave trailing bytes behind
	cfg.SetLocalPath("")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint(12), loaded.GetFPS())
	require.Equal(t, SourceLocal, loaded.GetSource())
	require.Equal(t, "", loaded.GetLocalPath())
}

func TestLoadEnvMissingFile(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadEnvSetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ANNOTATOR_DETECTOR_URL=ws://detector:9000/ws\n"), 0644))
	t.Setenv("ANNOTATOR_DETECTOR_URL", "")
	os.Unsetenv("ANNOTATOR_DETECTOR_URL")

	require.NoError(t, LoadEnv(path))
	require.Equal(t, "ws://detector:9000/ws", os.Getenv("ANNOTATOR_DETECTOR_URL"))
}

func TestLoadEnvMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ANNOTATOR_DETECTOR_URL=\"ws://detector:9000/ws\n"), 0644))

	err := LoadEnv(path)
	require.Error(t, err)
	require.NotErrorIs(t, err, fs.ErrNotExist)
}
