package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chazu/shadegraph/pkg/compiler"
	"github.com/chazu/shadegraph/pkg/config"
	"github.com/chazu/shadegraph/pkg/engine"
	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/logging"
	"github.com/chazu/shadegraph/pkg/registry"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool

	cfg config.Config
	reg *registry.Registry
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: config.Default(), reg: registry.Builtins()}

	root := &cobra.Command{
		Use:           "shadegraph",
		Short:         "Compile node graph scripts to shader programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "HCL config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newCompileCmd(opts),
		newCheckCmd(opts),
		newTypesCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// setup loads the config and installs the logger.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}
	level := logging.ParseLevel(o.cfg.LogLevel)
	if o.verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

// scriptError reports evaluation errors of a script.
type scriptError struct {
	path string
	errs []engine.EvalError
}

func (e *scriptError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, ee := range e.errs {
		msgs[i] = ee.Error()
	}
	return e.path + ": " + strings.Join(msgs, "; ")
}

// load evaluates the script at path into a graph.
func (o *rootOptions) load(path string) (*graph.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read script")
	}
	eng := engine.NewEngine(o.reg, engine.WithTimeout(o.cfg.EvalTimeout))
	g, evalErrs, err := eng.Evaluate(string(src))
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %s", path)
	}
	if len(evalErrs) > 0 {
		return nil, &scriptError{path: path, errs: evalErrs}
	}
	return g, nil
}

// build evaluates and compiles the script at path.
func (o *rootOptions) build(path string) (*compiler.Program, error) {
	g, err := o.load(path)
	if err != nil {
		return nil, err
	}
	p, err := compiler.New(o.reg).Compile(g)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", path)
	}
	return p, nil
}
