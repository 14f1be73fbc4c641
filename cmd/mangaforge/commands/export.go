package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mangaforge/mangaforge/cmd/mangaforge/ui"
	"github.com/mangaforge/mangaforge/internal/observability"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export <project file>",
	Short: "Export translated pages from a saved project",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory for translated pages")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "output image format (png or jpg)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(logConfig(cfg))
	app := newApp(cfg, logger)

	if err := app.projects.OpenPaths(context.Background(), args); err != nil {
		return err
	}

	written, err := app.projects.Export(context.Background(), exportOut, exportFormat)
	if err != nil {
		return err
	}
	for _, path := range written {
		ui.Verbose("wrote %s", path)
	}
	ui.Success("Exported %d pages to %s", len(written), exportOut)
	return nil
}
