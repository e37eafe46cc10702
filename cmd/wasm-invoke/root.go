package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-callgate/engine"
	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/runtime"
)

// errReported is returned after an exception has been printed, so cobra
// does not print it again.
var errReported = stderrors.New("exception reported")

// entryPoints are tried in order when invoke is given no function name.
var entryPoints = []string{"_start", "run", "main"}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wasm-invoke",
		Short:         "Invoke WebAssembly exports through the call boundary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "list <module.wasm>",
			Short: "List invocable exports with their signatures",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, args[0], func(s *session) error {
					s.out.title(args[0])
					for _, name := range s.mod.Exports() {
						fn, _ := s.mod.Function(name)
						fmt.Fprintln(s.out.out, "  "+s.out.signature(fn, name))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "invoke <module.wasm> [function] [args...]",
			Short: "Call an export and print its result",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, args[0], func(s *session) error {
					return s.invoke(cmd.Context(), args[1:])
				})
			},
		},
	)
	return root
}

// session is one loaded module and the runtime it lives in.
type session struct {
	rt       *runtime.Runtime
	mod      *engine.Module
	registry *prometheus.Registry
	out      *printer
	log      *zap.Logger
	cfg      *settings
}

func withSession(cmd *cobra.Command, path string, body func(*session) error) error {
	err := runSession(cmd, path, body)
	if err != nil && !stderrors.Is(err, errReported) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func runSession(cmd *cobra.Command, path string, body func(*session) error) error {
	cfg, err := loadSettings(cmd.Flags())
	if err != nil {
		return err
	}
	log, err := cfg.logger()
	if err != nil {
		return err
	}
	defer log.Sync()
	engine.SetLogger(log.Named("engine"))

	bin, err := os.ReadFile(path)
	if err != nil {
		return errors.Load("read "+path, err)
	}

	ctx := cmd.Context()
	eng, err := engine.NewWazeroEngine(ctx, cfg.engineConfig())
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	registry := prometheus.NewRegistry()
	rt, err := runtime.New(eng,
		runtime.WithLogger(log.Named("runtime")),
		runtime.WithRegisterer(registry))
	if err != nil {
		return err
	}

	mod, err := eng.LoadModule(ctx, rt, "main", bin)
	if err != nil {
		return err
	}
	defer mod.Close(ctx)

	return body(&session{
		rt:       rt,
		mod:      mod,
		registry: registry,
		out:      newPrinter(cmd.OutOrStdout(), cfg.Color),
		log:      log,
		cfg:      cfg,
	})
}

func (s *session) invoke(ctx context.Context, args []string) error {
	name, rest := s.pickFunction(args)
	if name == "" {
		return errors.NotFound(errors.PhaseInvoke, "function", "entry point")
	}
	fn, ok := s.mod.Function(name)
	if !ok {
		return errors.NotFound(errors.PhaseInvoke, "function", name)
	}
	values, err := parseArgs(fn.Type(), rest)
	if err != nil {
		return err
	}

	s.log.Debug("invoking", zap.String("function", name), zap.Stringers("args", values))
	res, err := s.rt.InvokeFunction(ctx, fn, values)
	defer s.printMetrics()

	var exc *runtime.Exception
	if stderrors.As(err, &exc) {
		s.out.exception(exc)
		return errReported
	}
	if err != nil {
		return err
	}
	s.out.result(res)
	return nil
}

// pickFunction returns the function to call and its arguments. With no
// name given it falls back to a conventional entry point, or to the
// only export.
func (s *session) pickFunction(args []string) (string, []string) {
	if len(args) > 0 {
		return args[0], args[1:]
	}
	exports := s.mod.Exports()
	for _, name := range entryPoints {
		if _, ok := s.mod.Function(name); ok {
			return name, nil
		}
	}
	if len(exports) == 1 {
		return exports[0], nil
	}
	return "", nil
}

func (s *session) printMetrics() {
	if !s.cfg.Metrics {
		return
	}
	families, err := s.registry.Gather()
	if err != nil {
		s.log.Warn("gather metrics", zap.Error(err))
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(s.out.out, line)
	}
}
