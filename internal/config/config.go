package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type SourceType string

const (
	SourceWebcam SourceType = "Web-Camera"
	SourceLocal  SourceType = "Local"

	DefaultConfigPath  string = "config.json"
	DefaultDetectorURL string = "ws://localhost:8080/ws"

	EnvPrefix = "ANNOTATOR"
)

var SourcesList = [...]string{
	string(SourceWebcam),
	string(SourceLocal),
}

type LocalConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

type WebcamConfig struct {
	DeviceID string `json:"device_id" mapstructure:"device_id"`
}

const (
	BackendRemote = "remote"
	BackendOpenCV = "opencv"
)

type DetectorConfig struct {
	Backend     string  `json:"backend" mapstructure:"backend"`
	URL         string  `json:"url" mapstructure:"url"`
	ModelPath   string  `json:"model_path" mapstructure:"model_path"`
	ModelConfig string  `json:"model_config" mapstructure:"model_config"`
	ClassesPath string  `json:"classes_path" mapstructure:"classes_path"`
	Confidence  float32 `json:"confidence" mapstructure:"confidence"`
}

type LogConfig struct {
	Dir   string `json:"dir" mapstructure:"dir"`
	Level string `json:"level" mapstructure:"level"`
}

type Config struct {
	mu sync.RWMutex

	ActiveSource SourceType `json:"active_source" mapstructure:"active_source"`
	TargetFPS    uint       `json:"target_fps" mapstructure:"target_fps"`
	LimitFPS     bool       `json:"limit_fps" mapstructure:"limit_fps"`

	// Capture resolution requested from ffmpeg.
	ScaledWidth  int `json:"scaled_width" mapstructure:"scaled_width"`
	ScaledHeight int `json:"scaled_height" mapstructure:"scaled_height"`

	// Size of the display surface frames are fitted into.
	DisplayWidth  int `json:"display_width" mapstructure:"display_width"`
	DisplayHeight int `json:"display_height" mapstructure:"display_height"`

	Local    LocalConfig    `json:"local" mapstructure:"local"`
	Webcam   WebcamConfig   `json:"webcam" mapstructure:"webcam"`
	Detector DetectorConfig `json:"detector" mapstructure:"detector"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetLimitFPS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LimitFPS
}

func (c *Config) SetLimitFPS(limit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LimitFPS = limit
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledHeight = height
}

func (c *Config) GetDisplaySize() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DisplayWidth, c.DisplayHeight
}

func (c *Config) GetSource() SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveSource
}

func (c *Config) SetSource(s SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = s
}

func (c *Config) GetLocalPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Local.Path
}

func (c *Config) SetLocalPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Local.Path = path
}

func (c *Config) GetDeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.DeviceID
}

func (c *Config) SetDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.DeviceID = id
}

func (c *Config) GetConfidence() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detector.Confidence
}

func (c *Config) SetConfidence(conf float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detector.Confidence = conf
}

// Save writes the configuration as indented JSON, replacing the file.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func (c *Config) SaveByDefault() error {
	return c.Save(DefaultConfigPath)
}

// LoadEnv loads .env files (the working directory's .env when none are given)
// into the process environment. A missing file is not an error.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Load reads path on top of the defaults and applies ANNOTATOR_* environment
// overrides (e.g. ANNOTATOR_DETECTOR_URL). A missing file is not an error.
// On a parse error the defaults are returned together with the error.
func Load(path string) (*Config, error) {
	def := NewDefaultConfig()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, def)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return def, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return def, err
	}

	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return def, fmt.Errorf("decode config %s: %w", path, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("active_source", string(d.ActiveSource))
	v.SetDefault("target_fps", d.TargetFPS)
	v.SetDefault("limit_fps", d.LimitFPS)
	v.SetDefault("scaled_width", d.ScaledWidth)
	v.SetDefault("scaled_height", d.ScaledHeight)
	v.SetDefault("display_width", d.DisplayWidth)
	v.SetDefault("display_height", d.DisplayHeight)
	v.SetDefault("local.path", d.Local.Path)
	v.SetDefault("webcam.device_id", d.Webcam.DeviceID)
	v.SetDefault("detector.backend", d.Detector.Backend)
	v.SetDefault("detector.url", d.Detector.URL)
	v.SetDefault("detector.model_path", d.Detector.ModelPath)
	v.SetDefault("detector.model_config", d.Detector.ModelConfig)
	v.SetDefault("detector.classes_path", d.Detector.ClassesPath)
	v.SetDefault("detector.confidence", d.Detector.Confidence)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.level", d.Log.Level)
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource:  SourceWebcam,
		TargetFPS:     24,
		LimitFPS:      true,
		ScaledWidth:   640,
		ScaledHeight:  480,
		DisplayWidth:  700,
		DisplayHeight: 500,
		Local:         LocalConfig{Path: ""},
		Webcam:        WebcamConfig{DeviceID: "/dev/video0"},
		Detector: DetectorConfig{
			Backend:     BackendRemote,
			URL:         DefaultDetectorURL,
			ClassesPath: "",
			Confidence:  0.25,
		},
		Log: LogConfig{Dir: "logs", Level: "info"},
	}
}
