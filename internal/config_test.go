package internal

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PathFormat:        DefaultPathFormat,
			DayBegins:         4,
			Mode:              "copy",
			MaxConflictSuffix: 100,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"day_begins too low", func(c *Config) { c.DayBegins = -1 }},
		{"day_begins too high", func(c *Config) { c.DayBegins = 24 }},
		{"bad mode", func(c *Config) { c.Mode = "link" }},
		{"suffix ceiling below one", func(c *Config) { c.MaxConflictSuffix = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			procErr, ok := err.(*ProcessError)
			if !ok || procErr.Category != ErrorCategoryConfig {
				t.Errorf("err = %v, want config category", err)
			}
		})
	}
}

func TestMediaExtensions(t *testing.T) {
	cfg := &Config{
		ImageExt: []string{".jpg", ".png"},
		VideoExt: []string{".mp4"},
		AudioExt: []string{".mp3"},
	}
	exts := cfg.MediaExtensions()
	if len(exts) != 4 {
		t.Fatalf("got %d extensions, want 4", len(exts))
	}
}
