package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"landscape-planner/internal/common/logging"
	"landscape-planner/internal/planner/catalog"
	"landscape-planner/internal/planner/codec"
	"landscape-planner/internal/planner/models"
	"landscape-planner/internal/planner/workspace"
)

// ============================================================
// plannerctl
// ============================================================

// RootCommand собирает дерево команд plannerctl.
func RootCommand(stdout io.Writer) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "plannerctl",
		Short:        "Offline tools for landscape planner project documents",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "info"
			if verbose {
				level = "debug"
			}
			logger := logging.New(os.Stderr, level)
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		},
	}
	root.SetOut(stdout)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newSummaryCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newAssetsCmd())
	return root
}

func readDocument(path string) (models.ProjectDocument, error) {
	var doc models.ProjectDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read document: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse document %s: %w", path, err)
	}
	return doc, nil
}

// openDocument loads doc into a fresh workspace backed by the seed catalog
// and waits until every asset record has settled.
func openDocument(ctx context.Context, docPath, seedPath string) (*workspace.Workspace, codec.Result, error) {
	logger := logging.FromContext(ctx)

	mem, err := catalog.LoadFile(seedPath)
	if err != nil {
		return nil, codec.Result{}, err
	}
	doc, err := readDocument(docPath)
	if err != nil {
		return nil, codec.Result{}, err
	}

	ws := workspace.New(ctx, "plannerctl", "local", workspace.Options{
		Catalog:     mem,
		Logger:      logger,
		Concurrency: 4,
	})
	load, err := ws.Load(ctx, doc)
	if err != nil {
		ws.Close()
		return nil, codec.Result{}, err
	}
	if err := load.Wait(ctx); err != nil {
		ws.Close()
		return nil, codec.Result{}, err
	}

	res := load.Result()
	logger.Debug("document loaded", "file", docPath, "inserted", res.Inserted, "skipped", res.Skipped)
	return ws, res, nil
}
