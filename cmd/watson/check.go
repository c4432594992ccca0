package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dragonhatcher/watson/internal/config"
	"github.com/dragonhatcher/watson/internal/orchestrator"
	"github.com/dragonhatcher/watson/internal/report"
	"github.com/dragonhatcher/watson/internal/source"
)

func newCheckCmd() *cobra.Command {
	var watch bool
	var configPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every axiom and theorem in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(configPath, watch)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "recheck on file change")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to watson.toml (default: search upward from cwd)")
	return cmd
}

func loadManifest(configPath string) (config.Manifest, string, error) {
	path := configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return config.Manifest{}, "", &CLIError{Type: "io", Message: err.Error()}
		}
		found, err := config.Locate(cwd)
		if err != nil {
			return config.Manifest{}, "", &CLIError{
				Type: "config", Message: err.Error(),
				Hint: "run `watson new <name>` to scaffold a project, or pass --config",
			}
		}
		path = found
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Manifest{}, "", &CLIError{Type: "io", Message: fmt.Sprintf("reading %s: %s", path, err)}
	}
	m, err := config.Load(data)
	if err != nil {
		return config.Manifest{}, "", &CLIError{Type: "config", Message: err.Error()}
	}
	return m, filepath.Dir(path), nil
}

func runCheck(configPath string, watch bool) error {
	m, projectDir, err := loadManifest(configPath)
	if err != nil {
		return err
	}
	rootDir := filepath.Join(projectDir, m.Root)
	useColor := ShouldUseColor(noColor)

	if !watch {
		cache := source.NewCache(rootDir, m.Ext)
		if _, err := cache.Load(m.Entry, source.OriginRoot, source.Span{}); err != nil {
			return &CLIError{Type: "io", Message: err.Error()}
		}
		res, err := orchestrator.Run(cache, m.Entry)
		if err != nil {
			return &CLIError{Type: "io", Message: err.Error()}
		}
		return printCheckResult(res, useColor)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() { <-sig; close(stop) }()

	results, err := orchestrator.Watch(rootDir, m.Ext, m.Entry, stop)
	if err != nil {
		return &CLIError{Type: "watch", Message: err.Error()}
	}
	var last error
	for res := range results {
		fmt.Println(Colorize("--- rechecking ---", ColorGray, useColor))
		last = printCheckResult(res, useColor)
	}
	return last
}

func printCheckResult(res *orchestrator.Result, useColor bool) error {
	for _, d := range res.Elaborator.Diags.Sorted() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	summary := report.Build(res.Certs, res.CheckOrder)
	fmt.Print(summary.String())
	if res.Elaborator.Diags.HasErrors() || summary.Errored > 0 {
		return &CLIError{Type: "check", Message: "one or more theorems did not check"}
	}
	return nil
}
