package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"wio/internal/config"
)

// reduceFlags are shared by every command that reduces files.
type reduceFlags struct {
	size      int
	width     int
	height    int
	quality   int
	recursive bool
	noBackup  bool
	parallel  bool
	webp      bool
	noWebP    bool
	workers   int
	floor     int
	noOrient  bool
	pngquant  string
}

func (f *reduceFlags) register(fs *pflag.FlagSet) {
	fs.IntVarP(&f.size, "size", "s", 0, "target file size in KB (default 100)")
	fs.IntVar(&f.width, "width", 0, "maximum width in px (default 1200)")
	fs.IntVar(&f.height, "height", 0, "maximum height in px")
	fs.IntVarP(&f.quality, "quality", "q", 0, "starting JPEG/WebP quality, 1-100 (default 85)")
	fs.BoolVarP(&f.recursive, "recursive", "r", false, "process directories recursively")
	fs.BoolVar(&f.noBackup, "nobackup", false, "do not create .bak copies of originals")
	fs.BoolVarP(&f.parallel, "parallel", "p", false, "process files concurrently")
	fs.BoolVar(&f.webp, "webp", false, "convert JPEG/PNG to a .webp sibling")
	fs.BoolVar(&f.noWebP, "no-webp", false, "keep the original format")
	fs.IntVar(&f.workers, "workers", 0, "parallel worker count (default number of CPUs)")
	fs.IntVar(&f.floor, "min-quality", 0, "lowest quality the size search may reach (default 10)")
	fs.BoolVar(&f.noOrient, "no-orient", false, "do not apply EXIF orientation before resizing")
	fs.StringVar(&f.pngquant, "pngquant", "", "pngquant binary (default pngquant on PATH)")
}

// loadConfig reads the config file and environment, then applies every flag
// the user set explicitly.
func (f *reduceFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("size") {
		cfg.Reduce.SizeKB = f.size
	}
	if fs.Changed("width") {
		cfg.Reduce.MaxWidth = f.width
	}
	if fs.Changed("height") {
		cfg.Reduce.MaxHeight = f.height
	}
	if fs.Changed("quality") {
		cfg.Reduce.Quality = f.quality
	}
	if fs.Changed("recursive") {
		cfg.Reduce.Recursive = f.recursive
	}
	if fs.Changed("nobackup") {
		cfg.Reduce.Backup = !f.noBackup
	}
	if fs.Changed("parallel") {
		cfg.Reduce.Parallel = f.parallel
	}
	if fs.Changed("webp") {
		cfg.Reduce.ConvertWebP = f.webp
	}
	if fs.Changed("no-webp") {
		cfg.Reduce.ConvertWebP = !f.noWebP
	}
	if fs.Changed("workers") {
		cfg.Reduce.Workers = f.workers
	}
	if fs.Changed("min-quality") {
		cfg.Search.Floor = f.floor
	}
	if fs.Changed("no-orient") {
		cfg.Reduce.AutoOrient = !f.noOrient
	}
	if fs.Changed("pngquant") {
		cfg.PNGQuant.Binary = f.pngquant
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
