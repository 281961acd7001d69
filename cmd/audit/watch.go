package main

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marek-kar/codeaudit/pkg/logging"
	"github.com/marek-kar/codeaudit/pkg/model"
	"github.com/marek-kar/codeaudit/pkg/render"
	"github.com/marek-kar/codeaudit/pkg/watch"
)

func newWatchCmd(stdout io.Writer, g *globalOptions) *cobra.Command {
	var (
		quick    bool
		debounce time.Duration
		cacheLen int
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-audit files under a directory whenever they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return loadError(err)
			}
			if !info.IsDir() {
				return loadError(&os.PathError{Op: "watch", Path: args[0], Err: os.ErrInvalid})
			}

			log, err := logging.New(g.debug)
			if err != nil {
				return loadError(err)
			}
			defer log.Sync()

			cat, err := loadCatalog(cmd.Context(), g, log)
			if err != nil {
				return err
			}
			cache, err := watch.NewContentCache(cacheLen)
			if err != nil {
				return loadError(err)
			}

			renderer := render.New(render.FormatText, render.Options{Quick: quick})
			w := &watch.Watcher{
				Dir:      args[0],
				Options:  g.collect,
				Runner:   newRunner(cat, g, log),
				Cache:    cache,
				Debounce: debounce,
				Log:      log,
				Emit: func(o model.FileOutcome) {
					summary := model.NewSummary(cat.Ref(), []model.FileOutcome{o})
					if err := renderer.Render(stdout, summary); err != nil {
						log.Errorw("render failed", "file", o.File, "error", err)
					}
				},
			}
			log.Infow("watching", "dir", args[0], "include", g.collect.Include)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&quick, "quick", true, "only print verdicts and counts")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-auditing")
	cmd.Flags().IntVar(&cacheLen, "cache-size", 4096, "files whose content hash is remembered")
	return cmd
}
