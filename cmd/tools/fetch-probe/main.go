// cmd/tools/fetch-probe/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"wallpaper-bot/internal/common/config"
	apperrors "wallpaper-bot/internal/common/errors"
	commonhttp "wallpaper-bot/internal/common/http"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
	fetchwallpaper "wallpaper-bot/internal/workers/wallpaper/fetch-wallpaper"
	validateimage "wallpaper-bot/internal/workers/wallpaper/validate-image"
)

type report struct {
	Category string                 `json:"category"`
	Result   *fetchwallpaper.Result `json:"result,omitempty"`
	Bytes    int                    `json:"bytes,omitempty"`
	Valid    bool                   `json:"valid"`
	Reason   string                 `json:"reason,omitempty"`
	Metadata *models.ImageMetadata  `json:"metadata,omitempty"`
	Saved    string                 `json:"saved,omitempty"`
	Duration string                 `json:"duration"`
}

func main() {
	fetchCmd := flag.NewFlagSet("fetch", flag.ExitOnError)
	category := fetchCmd.String("category", "nature", "Category to search for")
	out := fetchCmd.String("out", "", "Write the downloaded image to this path")
	cfgPath := fetchCmd.String("config", "", "Config file (defaults to configs/config.yaml)")
	verbose := fetchCmd.Bool("v", false, "Log provider attempts")

	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	file := validateCmd.String("file", "", "Local image to validate")

	sourcesCmd := flag.NewFlagSet("sources", flag.ExitOnError)
	sourcesCfg := sourcesCmd.String("config", "", "Config file (defaults to configs/config.yaml)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "fetch":
		fetchCmd.Parse(os.Args[2:])
		os.Exit(runFetch(*cfgPath, *category, *out, *verbose))
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if *file == "" {
			fmt.Println("Error: -file is required for validate.")
			validateCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runValidate(*file))
	case "sources":
		sourcesCmd.Parse(os.Args[2:])
		os.Exit(runSources(*sourcesCfg))
	default:
		help()
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: fetch-probe <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  fetch     Run one fetch, download and validation for a category")
	fmt.Println("  validate  Validate a local image file")
	fmt.Println("  sources   List the providers the current config enables")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

func newService(cfg *config.Config, log logger.Logger) (*fetchwallpaper.Service, error) {
	return fetchwallpaper.NewService(fetchwallpaper.ServiceDependencies{
		Logger:      log,
		HTTPClient:  commonhttp.NewClient(cfg.Providers.Timeout(), cfg.Providers.UserAgent),
		Credentials: fetchwallpaper.CredentialsFromConfig(cfg.Providers),
	}, fetchwallpaper.ConfigFromProviders(cfg.Providers))
}

func runFetch(cfgPath, category, out string, verbose bool) int {
	level := "error"
	if verbose {
		level = "debug"
	}
	log := logger.NewStructured(level, "console")
	errs := apperrors.NewErrorHandler(log)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	svc, err := newService(cfg, log)
	if err != nil {
		_, msg := errs.Handle("fetch-probe", err)
		fmt.Fprintln(os.Stderr, msg)
		return 1
	}
	validator, err := validateimage.NewValidator(validateimage.DefaultConfig(), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating validator: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	rep := report{Category: category}
	defer func() {
		rep.Duration = time.Since(start).String()
		printJSON(rep)
	}()

	res, err := svc.FetchWallpaper(ctx, category)
	rep.Result = res
	if err != nil {
		_, rep.Reason = errs.Handle("fetch", err)
		return 2
	}

	data, err := svc.DownloadImage(ctx, res.Descriptor.ImageURL)
	if err != nil {
		_, rep.Reason = errs.Handle("download", err)
		return 2
	}
	rep.Bytes = len(data)

	md, err := validator.CheckAndExtract(data)
	if err != nil {
		rep.Reason = err.Error()
		return 3
	}
	rep.Valid = true
	rep.Metadata = &md

	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			rep.Reason = fmt.Sprintf("write %s: %v", out, err)
			return 1
		}
		rep.Saved = out
	}
	return 0
}

func runValidate(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return 1
	}
	validator, err := validateimage.NewValidator(validateimage.DefaultConfig(), logger.NewNoOpLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating validator: %v\n", err)
		return 1
	}

	rep := report{Bytes: len(data)}
	if err := validator.Check(data); err != nil {
		rep.Reason = err.Error()
	} else {
		rep.Valid = true
	}
	md := validator.ExtractMetadata(data)
	rep.Metadata = &md
	printJSON(rep)
	if !rep.Valid {
		return 3
	}
	return 0
}

func runSources(cfgPath string) int {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	svc, err := newService(cfg, logger.NewNoOpLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating fetch service: %v\n", err)
		return 1
	}

	names := []string{}
	for _, src := range svc.ActiveSources() {
		names = append(names, src.Name())
	}
	printJSON(map[string]interface{}{
		"demo":    cfg.Providers.DemoMode(),
		"sources": names,
	})
	return 0
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
	}
}
