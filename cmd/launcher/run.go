package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fossabot/launcher-2/internal/launch"
	"github.com/fossabot/launcher-2/internal/progress"
)

func newRunCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Synchronize the cache and start the application",
		Long: `Resolve the newest manifest, download stale artifacts and hand off
to the application entry point. This is the default command.`,
		Args: cobra.NoArgs,
		RunE: opts.runLaunch,
	}
}

func (opts *rootOpts) runLaunch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := opts.log

	events := progress.NewChannel(progress.DefaultBuffer)
	lc, err := launch.NewContext(opts.cfg, opts.info, events, log)
	if err != nil {
		return err
	}

	l, err := launch.New(lc, launch.Options{
		Embedded: opts.embedded,
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	session := l.Start(ctx)

	var g errgroup.Group
	g.Go(func() error {
		defer events.Close()
		return session.Wait()
	})

	// Render on this goroutine until the worker is done
	out := newConsole(cmd.ErrOrStderr())
	progress.Forward(events.Events(), out)
	out.Finish()

	if err := g.Wait(); err != nil {
		return err
	}

	return session.Handle().Wait()
}
