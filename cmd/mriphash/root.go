package main

import (
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kosshi.net/mriphash/internal/config"
	"kosshi.net/mriphash/internal/imageio"
	"kosshi.net/mriphash/internal/logging"
	"kosshi.net/mriphash/internal/phash"
)

const hashLabel = "Your MRI phash (hex string):"

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"width":      "resize.width",
	"height":     "resize.height",
	"filter":     "resize.filter",
	"engine":     "hash.engine",
}

type app struct {
	configPath string
	loader     *config.Loader
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "mriphash [image]",
		Short: "Print the perceptual hash of an MRI image",
		Long: `mriphash loads one image, stretches it to a fixed resolution (256x256 by
default) and prints its 64-bit DCT perceptual hash as 16 hex digits.

Without an argument the configured image_path is hashed.`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runHash,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Config file path (default: ./mriphash.toml or ~/.config/mriphash/mriphash.toml)")
	f.String("log-level", "", "Log level: debug, info, warn, error (default: warn)")
	f.String("log-format", "", "Log format: console or json (default: console)")
	f.Int("width", 0, fmt.Sprintf("Resize width (default: %d)", phash.DefaultSize))
	f.Int("height", 0, fmt.Sprintf("Resize height (default: %d)", phash.DefaultSize))
	f.String("filter", "", fmt.Sprintf("Resample filter: %s (default: %s)", strings.Join(phash.Filters(), ", "), phash.DefaultFilter))
	f.String("engine", "", fmt.Sprintf("Hash engine: %s (default: %s)", strings.Join(phash.Engines, ", "), phash.EngineDCT))

	cmd.AddCommand(newCompareCmd(a))
	cmd.AddCommand(newVerifyCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

// setup loads the config, applying flags the user set, and configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.loader = config.NewLoader(a.configPath)
	for name, key := range flagKeys {
		if err := a.loader.BindFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	if err := logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	if used := a.loader.Used(); used != "" {
		log.Debug().Str("file", used).Msg("Loaded config")
	}
	a.cfg = cfg
	return nil
}

func (a *app) runHash(cmd *cobra.Command, args []string) error {
	path := a.cfg.ImagePath
	if len(args) == 1 {
		path = args[0]
	}

	h, err := a.hashFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hashLabel, h)
	return nil
}

func (a *app) hashFile(path string) (phash.Hash, error) {
	p, err := a.cfg.Pipeline()
	if err != nil {
		return 0, err
	}
	log.Debug().Str("path", path).Str("engine", a.cfg.Hash.Engine).Msg("Hashing image")
	return p.HashFile(path)
}

// loadAndHash keeps the decoded image for callers that score pixels too.
func (a *app) loadAndHash(path string) (image.Image, phash.Hash, error) {
	p, err := a.cfg.Pipeline()
	if err != nil {
		return nil, 0, err
	}
	img, err := imageio.Load(path, p.LoadOptions...)
	if err != nil {
		return nil, 0, err
	}
	h, err := p.HashImage(img)
	if err != nil {
		return nil, 0, err
	}
	return img, h, nil
}
