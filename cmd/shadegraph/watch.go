package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chazu/shadegraph/pkg/logging"
)

// settleDelay batches the burst of events an editor produces per save.
const settleDelay = 100 * time.Millisecond

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch SCRIPT",
		Short: "Recompile a graph script every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := opts.watch(ctx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// watch compiles path once and again after every change until ctx ends.
// A failed compile is reported and the last good program stays current.
func (o *rootOptions) watch(ctx context.Context, path string, out, errOut io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve script path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file on save.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrap(err, "setting up watcher")
	}
	logging.Logger().Info("watching script", "path", abs)

	var last string
	rebuild := func() {
		p, err := o.build(abs)
		if err != nil {
			color.New(color.FgRed).Fprintf(errOut, "✗ %v\n", err)
			if last != "" {
				fmt.Fprintln(errOut, "  keeping previous program")
			}
			return
		}
		src := p.Source()
		if src == last {
			return
		}
		last = src
		color.New(color.FgGreen).Fprintf(errOut, "✓ compiled %s (%d statements)\n", filepath.Base(abs), len(p.Statements))
		fmt.Fprintln(out, src)
	}
	rebuild()

	settle := time.NewTimer(settleDelay)
	settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			settle.Reset(settleDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "Watch error: %v\n", err)

		case <-settle.C:
			rebuild()
		}
	}
}
