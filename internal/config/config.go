package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	DeviceFetchTimeout time.Duration
	MaxRequestBodySize int64

	// Session defaults, replaced by a loaded project config
	OutputRoot string
	Project    string
	Creator    string

	FileFormat  string
	JPEGQuality int

	LabelDevice   string
	BarcodeDevice string
	FrameWidth    int
	FrameHeight   int
	RotatePreview bool

	Copyright  string
	UsageTerms string

	BlurThreshold float64
	OCREnabled    bool
	OCRLanguage   string

	AzureAccount   string
	AzureKey       string
	AzureContainer string
	ArchiveWorkers int

	DatabaseURL string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	ActivityLogSize int
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// ArchiveEnabled reports whether Azure credentials are configured
func (c *Config) ArchiveEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != "" && c.AzureContainer != ""
}

func LoadFromEnv() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		DeviceFetchTimeout: parseDurationOrDefault("DEVICE_FETCH_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 1024*1024), // 1MB

		OutputRoot: getEnvOrDefault("OUTPUT_ROOT", home),
		Project:    getEnvOrDefault("PROJECT_NAME", DefaultProjectName),
		Creator:    getEnvOrDefault("CREATOR", ""),

		FileFormat:  getEnvOrDefault("FILE_FORMAT", ".jpg"),
		JPEGQuality: int(parseIntOrDefault("JPEG_QUALITY", 95)),

		LabelDevice:   getEnvOrDefault("LABEL_DEVICE", "webcam:0"),
		BarcodeDevice: getEnvOrDefault("BARCODE_DEVICE", "webcam:1"),
		FrameWidth:    int(parseIntOrDefault("FRAME_WIDTH", 1280)),
		FrameHeight:   int(parseIntOrDefault("FRAME_HEIGHT", 720)),
		RotatePreview: parseBoolOrDefault("ROTATE_PREVIEW", true),

		Copyright:  getEnvOrDefault("COPYRIGHT", ""),
		UsageTerms: getEnvOrDefault("USAGE_TERMS", ""),

		BlurThreshold: parseFloatOrDefault("BLUR_THRESHOLD", 100),
		OCREnabled:    parseBoolOrDefault("OCR_ENABLED", false),
		OCRLanguage:   getEnvOrDefault("OCR_LANGUAGE", "eng"),

		AzureAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "captures"),
		ArchiveWorkers: int(parseIntOrDefault("ARCHIVE_WORKERS", 2)),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTTopic:    getEnvOrDefault("MQTT_TOPIC", "labelstation/events"),
		MQTTClientID: getEnvOrDefault("MQTT_CLIENT_ID", "labelstation"),

		ActivityLogSize: int(parseIntOrDefault("ACTIVITY_LOG_SIZE", 200)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values for consistency
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.DeviceFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)", c.RequestTimeout, c.DeviceFetchTimeout)
	}
	if !strings.HasPrefix(c.FileFormat, ".") {
		return fmt.Errorf("FILE_FORMAT must start with a dot (got %q)", c.FileFormat)
	}
	switch strings.ToLower(c.FileFormat) {
	case ".jpg", ".jpeg":
	default:
		return fmt.Errorf("FILE_FORMAT %q is not supported, use .jpg or .jpeg", c.FileFormat)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1..100 (got %d)", c.JPEGQuality)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be positive (got %dx%d)", c.FrameWidth, c.FrameHeight)
	}
	if c.ArchiveWorkers < 1 {
		return fmt.Errorf("ARCHIVE_WORKERS must be >= 1 (got %d)", c.ArchiveWorkers)
	}
	if c.ActivityLogSize < 1 {
		return fmt.Errorf("ACTIVITY_LOG_SIZE must be >= 1 (got %d)", c.ActivityLogSize)
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("OUTPUT_ROOT must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
