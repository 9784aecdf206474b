package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/fossabot/launcher-2/internal/launch"
	"github.com/fossabot/launcher-2/internal/progress"
)

type statusOpts struct {
	*rootOpts
	offline bool
	format  string
}

func newStatusCmd(root *rootOpts) *cobra.Command {
	opts := &statusOpts{rootOpts: root}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report which artifacts a run would download",
		Long: `Resolve the manifest and compare every artifact with the cache.
Nothing is downloaded. With --offline the published manifest is not consulted.`,
		Args: cobra.NoArgs,
		RunE: opts.runStatus,
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Only use the cached or embedded manifest")
	cmd.Flags().StringVar(&opts.format, "format", "yaml", "Output format (yaml, text)")
	_ = cmd.RegisterFlagCompletionFunc("format", completeArgList([]string{"yaml", "text"}))

	return cmd
}

func (opts *statusOpts) runStatus(cmd *cobra.Command, args []string) error {
	if opts.format != "yaml" && opts.format != "text" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	lc, err := launch.NewContext(opts.cfg, opts.info, progress.Nop{}, opts.log)
	if err != nil {
		return err
	}
	l, err := launch.New(lc, launch.Options{Embedded: opts.embedded})
	if err != nil {
		return err
	}

	report, err := l.Inspect(cmd.Context(), opts.offline)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "yaml" {
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "Version:     %s\n", report.Version)
	fmt.Fprintf(out, "Entry point: %s\n", report.EntryPoint)
	fmt.Fprintf(out, "Cache:       %s\n", report.CacheRoot)
	fmt.Fprintf(out, "Artifacts:   %d (%d bytes)\n", report.Artifacts, report.TotalBytes)
	if len(report.Stale) == 0 {
		fmt.Fprintln(out, "Up to date")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSIZE\tREASON")
	for _, s := range report.Stale {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Path, s.Size, s.Reason)
	}
	return tw.Flush()
}
