// Command importer loads reference fixtures into the durable store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/config"
	"github.com/kjstillabower/apiverse/internal/importer"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/store"
)

const (
	forceFlag = "force"
	dataFlag  = "data"
	storeFlag = "store"
	kindFlag  = "kind"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = newCommand(logger).ExecuteContext(ctx)
	stop()
	_ = observability.FlushTelemetry(context.Background(), logger)
	if err != nil {
		os.Exit(1)
	}
}

func newCommand(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "importer",
		Short: "Import reference entities into the apiverse store",
		Long: `Loads films, people, planets, species, transport, starships and vehicles
from fixture files. Without --force the import is skipped when the store
already holds reference data.`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger)
		},
	}
	cmd.Flags().Bool(forceFlag, false, "replace existing reference data")
	cmd.Flags().String(dataFlag, "", "directory of fixture files (default: embedded fixtures)")
	cmd.Flags().String(storeFlag, "", "SQLite path, overriding the configured store")
	cmd.Flags().String(kindFlag, "", "import a single kind (e.g. starships)")
	return cmd
}

func run(cmd *cobra.Command, logger *zap.Logger) error {
	flags := cmd.Flags()
	force, _ := flags.GetBool(forceFlag)
	dataDir, _ := flags.GetString(dataFlag)
	path, _ := flags.GetString(storeFlag)
	kindName, _ := flags.GetString(kindFlag)

	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = cfg.StorePath
		if dataDir == "" {
			dataDir = cfg.ReferenceDataDir
		}
	}

	db, err := store.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.WithRetry(db, store.RetryConfig{}, logger)
	im := importer.New(st, importer.FromDir(dataDir), logger)
	ctx := cmd.Context()

	if kindName != "" {
		kind, err := parseImportKind(kindName)
		if err != nil {
			return err
		}
		n, err := im.ImportKind(ctx, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", kind, n)
		return nil
	}

	var res importer.Result
	if force {
		res, err = im.ImportAll(ctx)
	} else {
		res, err = im.Bootstrap(ctx)
	}
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "reference data already present; use --force to replace it")
		return nil
	}
	for _, o := range importer.Order {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", o.Kind, res[o.Kind])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "total: %d\n", res.Total())
	return nil
}

// parseImportKind accepts public kinds and the auxiliary transport kind.
func parseImportKind(s string) (models.Kind, error) {
	if k, err := models.ParseKind(s); err == nil {
		return k, nil
	}
	if strings.EqualFold(s, string(models.Transport)) {
		return models.Transport, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}
