package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lensd/internal/config"
	"lensd/internal/registry"
	"lensd/internal/textdetect"
)

// Defaults for unset flags and config fields.
const (
	defaultAddr      = "127.0.0.1:8088"
	defaultModelsDir = "~/models/lensd"
	defaultDataDir   = "~/.local/share/lensd"
)

// cliFlags are the persistent and serve flags; they override the config file.
type cliFlags struct {
	configPath string
	logLevel   string
	logJSON    bool

	addr         string
	modelsDir    string
	defaultModel string
	dataDir      string
	captureDir   string
	corsOrigins  string
	sourceLang   string
	targetLang   string
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:           "lensd",
		Short:         "On-device translation daemon for text, voice and camera input",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", os.Getenv("LENSD_CONFIG"), "Config file (.yaml, .json or .toml)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	pf.BoolVar(&f.logJSON, "log-json", false, "Log JSON lines instead of console output")
	pf.StringVar(&f.modelsDir, "models-dir", "", "Directory to scan for *.gguf model assets (default "+defaultModelsDir+")")

	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Run the local API",
		Example: "  lensd serve --models-dir ~/models/lensd --capture-dir ./photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, f.logJSON)
		},
	}
	sf := serve.Flags()
	sf.StringVar(&f.addr, "addr", "", "HTTP listen address (default "+defaultAddr+")")
	sf.StringVar(&f.defaultModel, "default-model", "", "Model id loaded at startup (default: first asset)")
	sf.StringVar(&f.dataDir, "data-dir", "", "Directory for persisted translations (default "+defaultDataDir+")")
	sf.StringVar(&f.captureDir, "capture-dir", "", "Directory of still images used as the camera")
	sf.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated origins allowed to call the API")
	sf.StringVar(&f.sourceLang, "source-lang", "", "Default source language (empty detects it)")
	sf.StringVar(&f.targetLang, "target-lang", "", "Default target language (default en)")

	models := &cobra.Command{
		Use:   "models",
		Short: "List the model assets found in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			list, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tQUANT\tVISION\tPATH")
			for _, m := range list {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", m.ID, m.Quant, m.Vision, m.Path)
			}
			return tw.Flush()
		},
	}

	var langs string
	detect := &cobra.Command{
		Use:     "detect <image>",
		Short:   "Detect text blocks in an image and print them as JSON",
		Example: "  lensd detect menu.jpg --lang ja",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			svc := textdetect.New(textdetect.Options{
				MaxDimension: cfg.TextMaxPixels,
				Logger:       newLogger(cfg.LogLevel, f.logJSON),
			})
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			blocks, err := svc.DetectBytes(ctx, data, splitCSV(langs))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(blocks)
		},
	}
	detect.Flags().StringVar(&langs, "lang", "", "Comma-separated recognition language hints")

	root.AddCommand(serve, models, detect)
	return root
}

// resolveConfig loads the config file (if any), applies flags that were set
// explicitly, then fills defaults.
func resolveConfig(cmd *cobra.Command, f *cliFlags) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		c, err := config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	set := func(name string, dst *string, val string) {
		if fl := cmd.Flags().Lookup(name); fl != nil && fl.Changed {
			*dst = val
		}
	}
	set("log-level", &cfg.LogLevel, f.logLevel)
	set("models-dir", &cfg.ModelsDir, f.modelsDir)
	set("addr", &cfg.Addr, f.addr)
	set("default-model", &cfg.DefaultModel, f.defaultModel)
	set("data-dir", &cfg.DataDir, f.dataDir)
	set("capture-dir", &cfg.CaptureDir, f.captureDir)
	set("source-lang", &cfg.SourceLang, f.sourceLang)
	set("target-lang", &cfg.TargetLang, f.targetLang)
	if fl := cmd.Flags().Lookup("cors-origins"); fl != nil && fl.Changed {
		cfg.CORSOrigins = splitCSV(f.corsOrigins)
	}

	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = defaultModelsDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	return cfg, cfg.Validate()
}
