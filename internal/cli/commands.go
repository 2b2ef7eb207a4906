package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"landscape-planner/internal/common/logging"
	"landscape-planner/internal/planner/catalog"
	"landscape-planner/internal/planner/codec"
)

// ============================================================
// summary
// ============================================================

func newSummaryCmd() *cobra.Command {
	var seed string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary [document.json]",
		Short: "Print total price and vendors of a project document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, res, err := openDocument(cmd.Context(), args[0], seed)
			if err != nil {
				return err
			}
			defer ws.Close()

			agg, err := ws.Summary(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(agg)
			}

			fmt.Fprintf(out, "total: %s\n", agg.Total.String())
			fmt.Fprintf(out, "assets: %d loaded, %d skipped\n", res.Inserted, res.Skipped)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, v := range agg.Vendors {
				fmt.Fprintf(tw, "vendor\t%s\t%s\n", v.ID, v.Name)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(agg.Excluded) > 0 {
				fmt.Fprintf(out, "unpriced: %s\n", strings.Join(agg.Excluded, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&seed, "catalog", "c", "catalog.toml", "catalog seed file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the aggregation as JSON")
	return cmd
}

// ============================================================
// render
// ============================================================

func newRenderCmd() *cobra.Command {
	var seed, output string
	var grid bool

	cmd := &cobra.Command{
		Use:   "render [document.json]",
		Short: "Render a project document to SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := openDocument(cmd.Context(), args[0], seed)
			if err != nil {
				return err
			}
			defer ws.Close()

			svg, err := ws.Render(cmd.Context(), !grid)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), svg)
				return err
			}
			if err := os.WriteFile(output, []byte(svg), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			logging.FromContext(cmd.Context()).Info("rendered", "file", output, "bytes", len(svg))
			return nil
		},
	}
	cmd.Flags().StringVarP(&seed, "catalog", "c", "catalog.toml", "catalog seed file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&grid, "grid", false, "keep the grid overlay")
	return cmd
}

// ============================================================
// validate
// ============================================================

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [document.json]",
		Short: "Check that a project document is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if err := codec.Validate(doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d walls, %d assets\n", len(doc.Walls), len(doc.Entities))
			return nil
		},
	}
}

// ============================================================
// assets
// ============================================================

func newAssetsCmd() *cobra.Command {
	var seed, query, category string

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List catalog assets from a seed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, err := catalog.LoadFile(seed)
			if err != nil {
				return err
			}
			items, err := mem.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range catalog.Filter(items, query, category) {
				vendor := "-"
				if d.Vendor != nil {
					vendor = d.Vendor.ID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Category, d.Price.Value().String(), vendor)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&seed, "catalog", "c", "catalog.toml", "catalog seed file")
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive name filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	return cmd
}
