package commands

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/mangaforge/mangaforge/cmd/mangaforge/ui"
	"github.com/mangaforge/mangaforge/internal/observability"
)

var (
	processOut    string
	processFormat string
	processSave   string
)

var processCmd = &cobra.Command{
	Use:   "process [files or directory]",
	Short: "Run the full translation pipeline over manga pages",
	Long: `Process loads the given image files, PDFs, or a directory of pages,
runs detection, OCR, inpainting, and translation over every page, and
exports the results. Interrupting with Ctrl-C cancels between stages.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOut, "out", "o", ".", "output directory for translated pages")
	processCmd.Flags().StringVarP(&processFormat, "format", "f", "", "output image format (png or jpg)")
	processCmd.Flags().StringVar(&processSave, "save", "", "also save a project file to this path")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(logConfig(cfg))
	app := newApp(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Ctrl-C requests cooperative cancellation; a second interrupt kills
	// the process through the default handler.
	var cancelled atomic.Bool
	go func() {
		<-ctx.Done()
		if app.ops.Cancel() {
			cancelled.Store(true)
		}
		stop()
	}()

	spin := ui.NewSpinner("loading pages")
	spin.Start()
	err = loadInputs(ctx, app, args)
	spin.Stop()
	if err != nil {
		return err
	}
	ui.Success("Loaded %d pages", app.store.Count())

	finish := watchProgress(app.ops)
	err = app.pipeline.ProcessAllPages(context.Background(), app.params)
	finish()
	if err != nil {
		return err
	}
	if cancelled.Load() {
		ui.Warning("Processing cancelled")
	}

	if processSave != "" {
		if err := app.projects.SaveProject(context.Background(), processSave); err != nil {
			return err
		}
		ui.Success("Project saved to %s", processSave)
	}

	written, err := app.projects.Export(context.Background(), processOut, processFormat)
	if err != nil {
		return err
	}
	for _, path := range written {
		ui.Verbose("wrote %s", path)
	}
	ui.Success("Exported %d pages to %s", len(written), processOut)
	return nil
}

// loadInputs loads a single directory argument as a directory, anything
// else as a list of files.
func loadInputs(ctx context.Context, app *app, args []string) error {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return app.projects.OpenDirectory(ctx, args[0])
		}
	}
	return app.projects.OpenPaths(ctx, args)
}
