package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultPathFormat is used when no path_format is configured.
const DefaultPathFormat = "{%Y-%m-%b}/{album}|{city}/{%Y-%m-%d_%H-%M-%S}-{name}.%l{ext}"

type Config struct {
	PathFormat          string   `mapstructure:"path_format"`
	DayBegins           int      `mapstructure:"day_begins"`
	Mode                string   `mapstructure:"mode"`
	WhitespaceSub       string   `mapstructure:"whitespace_substitute"`
	MaxConflictSuffix   int      `mapstructure:"max_conflict_suffix"`
	GeocoderTimeoutSecs int      `mapstructure:"geocoder_timeout_s"`
	PreferEnglishNames  bool     `mapstructure:"prefer_english_names"`
	AlbumFromFolder     bool     `mapstructure:"album_from_folder"`
	RemoveDuplicates    bool     `mapstructure:"remove_duplicates"`
	FilenameDateRegex   string   `mapstructure:"filename_date_regex"`
	UseExifTool         bool     `mapstructure:"use_exiftool"`
	MaxDeep             int      `mapstructure:"max_deep"`
	ImageExt            []string `mapstructure:"image_extensions"`
	VideoExt            []string `mapstructure:"video_extensions"`
	AudioExt            []string `mapstructure:"audio_extensions"`
	ExcludeRegexes      []string `mapstructure:"exclude_regexes"`
}

func LoadConfig() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find user config dir: %w", err)
	}

	viper.SetConfigName("curator")
	viper.SetConfigType("toml")
	viper.AddConfigPath(filepath.Join(configDir, "curator"))

	// Set defaults:
	viper.SetDefault("path_format", DefaultPathFormat)
	viper.SetDefault("day_begins", 0)
	viper.SetDefault("mode", "copy")
	viper.SetDefault("whitespace_substitute", "_")
	viper.SetDefault("max_conflict_suffix", 100)
	viper.SetDefault("geocoder_timeout_s", 10)
	viper.SetDefault("prefer_english_names", false)
	viper.SetDefault("album_from_folder", false)
	viper.SetDefault("remove_duplicates", false)
	viper.SetDefault("use_exiftool", false)
	viper.SetDefault("max_deep", -1)
	viper.SetDefault("image_extensions", []string{".jpg", ".jpeg", ".png", ".gif", ".heic", ".tiff", ".dng", ".nef", ".cr2"})
	viper.SetDefault("video_extensions", []string{".mp4", ".mov", ".avi", ".mkv", ".m4v", ".3gp"})
	viper.SetDefault("audio_extensions", []string{".m4a", ".mp3", ".wav"})

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; that's OK, just use defaults
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values that apply to every file of a run.
func (c *Config) Validate() error {
	if c.DayBegins < 0 || c.DayBegins > 23 {
		return &ProcessError{
			Category:    ErrorCategoryConfig,
			Severity:    ErrorSeverityCritical,
			OriginalErr: fmt.Errorf("day_begins must be between 0 and 23, got %d", c.DayBegins),
		}
	}
	if c.Mode != "copy" && c.Mode != "move" {
		return &ProcessError{
			Category:    ErrorCategoryConfig,
			Severity:    ErrorSeverityCritical,
			OriginalErr: fmt.Errorf("mode must be copy or move, got %q", c.Mode),
		}
	}
	if c.MaxConflictSuffix < 1 {
		return &ProcessError{
			Category:    ErrorCategoryConfig,
			Severity:    ErrorSeverityCritical,
			OriginalErr: fmt.Errorf("max_conflict_suffix must be at least 1, got %d", c.MaxConflictSuffix),
		}
	}
	return nil
}

// MediaExtensions returns all configured media extensions.
func (c *Config) MediaExtensions() []string {
	exts := make([]string, 0, len(c.ImageExt)+len(c.VideoExt)+len(c.AudioExt))
	exts = append(exts, c.ImageExt...)
	exts = append(exts, c.VideoExt...)
	exts = append(exts, c.AudioExt...)
	return exts
}
