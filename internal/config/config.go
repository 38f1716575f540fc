// Package config holds runtime settings: defaults, the optional YAML file,
// .env and WIO_* environment overrides, and validation. Command-line flags are
// applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wio/internal/processor"
)

// DefaultPath is read when neither --config nor WIO_CONFIG names a file.
const DefaultPath = "wio.yaml"

// Config is loaded once per invocation and not mutated after flags are applied.
type Config struct {
	Reduce struct {
		SizeKB      int  `yaml:"size_kb"`
		MaxWidth    int  `yaml:"max_width"`
		MaxHeight   int  `yaml:"max_height"`
		Quality     int  `yaml:"quality"`
		Recursive   bool `yaml:"recursive"`
		Backup      bool `yaml:"backup"`
		ConvertWebP bool `yaml:"webp"`
		Parallel    bool `yaml:"parallel"`
		Workers     int  `yaml:"workers"`
		AutoOrient  bool `yaml:"auto_orient"`
	} `yaml:"reduce"`
	Search struct {
		Floor int `yaml:"floor"`
		Step  int `yaml:"step"`
	} `yaml:"search"`
	PNGQuant struct {
		Binary  string `yaml:"binary"`
		Quality string `yaml:"quality"`
	} `yaml:"pngquant"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	c := &Config{}
	c.Reduce.SizeKB = 100
	c.Reduce.MaxWidth = 1200
	c.Reduce.Quality = processor.DefaultQuality
	c.Reduce.Backup = true
	c.Reduce.ConvertWebP = true
	c.Reduce.Workers = runtime.NumCPU()
	c.Reduce.AutoOrient = true
	c.Search.Floor = processor.QualityFloor
	c.Search.Step = processor.QualityStep
	c.PNGQuant.Binary = "pngquant"
	c.PNGQuant.Quality = "50-100"
	c.Log.Level = "warn"
	return c
}

// Load reads .env (if present), then the YAML file at path over the defaults,
// then WIO_* environment variables. A missing file is not an error. An empty
// path falls back to WIO_CONFIG, then DefaultPath.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("WIO_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	c := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("WIO_PNGQUANT"); v != "" {
		c.PNGQuant.Binary = v
	}
	if v := os.Getenv("WIO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("WIO_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("WIO_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: WIO_WORKERS: %w", err)
		}
		c.Reduce.Workers = n
	}
	return nil
}

var qualityRange = regexp.MustCompile(`^\d{1,3}-\d{1,3}$`)

// Validate rejects settings the reducer cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if c.Reduce.SizeKB <= 0 {
		errs = append(errs, fmt.Errorf("size must be a positive number of KB, got %d", c.Reduce.SizeKB))
	}
	if c.Reduce.MaxWidth < 0 {
		errs = append(errs, fmt.Errorf("width must be positive, got %d", c.Reduce.MaxWidth))
	}
	if c.Reduce.MaxHeight < 0 {
		errs = append(errs, fmt.Errorf("height must be positive, got %d", c.Reduce.MaxHeight))
	}
	if c.Reduce.Quality < 1 || c.Reduce.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be between 1 and 100, got %d", c.Reduce.Quality))
	}
	if c.Reduce.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Reduce.Workers))
	}
	if c.Search.Floor < 1 || c.Search.Floor > 100 {
		errs = append(errs, fmt.Errorf("search floor must be between 1 and 100, got %d", c.Search.Floor))
	}
	if c.Search.Step < 1 {
		errs = append(errs, fmt.Errorf("search step must be at least 1, got %d", c.Search.Step))
	}
	if !qualityRange.MatchString(strings.TrimSpace(c.PNGQuant.Quality)) {
		errs = append(errs, fmt.Errorf("pngquant quality must look like min-max, got %q", c.PNGQuant.Quality))
	}
	return errors.Join(errs...)
}

// Task builds the immutable per-file task for path.
func (c *Config) Task(path string) processor.ImageTask {
	return processor.ImageTask{
		Path:         path,
		TargetKB:     c.Reduce.SizeKB,
		MaxWidth:     c.Reduce.MaxWidth,
		MaxHeight:    c.Reduce.MaxHeight,
		Quality:      c.Reduce.Quality,
		Backup:       c.Reduce.Backup,
		ConvertWebP:  c.Reduce.ConvertWebP,
		Parallel:     c.Reduce.Parallel,
		QualityFloor: c.Search.Floor,
		QualityStep:  c.Search.Step,
	}
}

// Quantizer returns the configured PNG quantizer.
func (c *Config) Quantizer() processor.Quantizer {
	return processor.PNGQuant{
		Binary:  c.PNGQuant.Binary,
		Quality: strings.TrimSpace(c.PNGQuant.Quality),
	}
}
