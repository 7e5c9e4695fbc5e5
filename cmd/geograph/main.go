// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/cmd/geograph/config"
	"github.com/AleutianAI/AleutianGraph/services/dataaccess/sqlite"
	"github.com/AleutianAI/AleutianGraph/services/graph/database"
	"github.com/AleutianAI/AleutianGraph/services/graph/snapshot"
	"github.com/AleutianAI/AleutianGraph/services/telemetry"
)

// app is the state shared by every command of one invocation.
type app struct {
	// persistent flags
	configPath string
	logLevel   string
	logFile    string
	dbPath     string

	cfg      config.GeographConfig
	logger   *slog.Logger
	closers  []io.Closer
	shutdown func(context.Context) error
}

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		newPrinter(os.Stderr).fail(err)
		os.Exit(1)
	}
}

// execute runs one invocation. Telemetry and log files are closed even when
// the command fails.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown(ctx))
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "geograph",
		Short: "Build, persist, and analyse spatial graphs",
		Long: `geograph builds generalized proximity matrices from spatial datasets,
persists graphs to a relational database or a snapshot store, and runs
spatial statistics and minimum spanning trees over them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.geograph/geograph.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFile, "log-file", "", "write logs to a rotating file")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database holding datasets and graphs")

	root.AddCommand(
		a.configCmd(),
		a.gpmCmd(),
		a.statsCmd(),
		a.mstCmd(),
		a.graphsCmd(),
		a.snapshotCmd(),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFile != "" {
		cfg.Logging.File = a.logFile
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.logger = logger
	slog.SetDefault(logger)

	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	logger.Debug("configuration loaded",
		slog.String("config", cmp.Or(a.configPath, config.DefaultPath())),
		slog.String("database", cfg.Database.Path))
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(context.WithoutCancel(ctx)))
		a.shutdown = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) tableOptions() []database.Option {
	return []database.Option{
		database.WithTableNames(a.cfg.Database.Tables),
		database.WithLogger(a.logger),
	}
}

// openSource opens the configured database. Callers must Close it.
func (a *app) openSource(ctx context.Context) (*sqlite.DataSource, error) {
	path := a.cfg.Database.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return sqlite.Open(ctx, path, sqlite.WithLogger(a.logger))
}

// openStore opens the snapshot store. Callers must Close it.
func (a *app) openStore() (*snapshot.Store, error) {
	cfg := a.cfg.Snapshot
	cfg.Logger = a.logger
	return snapshot.Open(cfg)
}
