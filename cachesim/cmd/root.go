// Package cmd provides the command-line interface of the cache simulator.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/report"
)

type options struct {
	configFile  string
	envFile     string
	record      string
	parallel    int
	monitor     bool
	monitorPort int
	openBrowser bool
	logLevel    string

	// monitorHolding is called once the replay is done and the monitor keeps
	// serving.
	monitorHolding func(url string)

	size          int
	lineSize      int
	associativity int
	addressWidth  int
	traceFile     string
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		logrus.Error(err)
		atexit.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(opts *options) *cobra.Command {
	defaults := DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "cachesim",
		Short: "Replay an address trace through a set-associative LRU cache.",
		Long: `cachesim reads a trace of fixed-width hexadecimal addresses, ` +
			`classifies every access as a hit or a miss, and prints the ` +
			`set index and outcome of each access followed by the hit rate.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}

			logrus.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.IntVarP(&opts.size, "size", "s", defaults.TotalBytes,
		"total cache size in bytes")
	flags.IntVarP(&opts.associativity, "associativity", "a",
		defaults.Associativity, "number of ways per set")
	flags.IntVarP(&opts.lineSize, "line-size", "l", defaults.LineBytes,
		"cache line size in bytes")
	flags.StringVarP(&opts.traceFile, "file", "f", "",
		"trace file, one hexadecimal address per line")
	flags.IntVar(&opts.addressWidth, "address-width", defaults.AddressWidth,
		"number of bits in an address")
	flags.StringVar(&opts.configFile, "config", "",
		"YAML file with size, line_size, associativity, address_width "+
			"and trace_file")
	flags.StringVar(&opts.record, "record", "",
		"record every access into this SQLite file")
	flags.IntVar(&opts.parallel, "parallel", 1,
		"number of goroutines used to replay the trace")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the simulation state over HTTP until interrupted")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the monitoring server, 0 picks a free one")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&opts.envFile, "env-file", ".env",
		"dotenv file with CACHESIM_ variables")
	persistent.StringVar(&opts.logLevel, "log-level", "info",
		"panic, fatal, error, warn, info, debug or trace")

	rootCmd.AddCommand(newShowCmd())

	return rootCmd
}

// resolveConfig layers defaults, the config file, the environment and the
// flags set on the command line, in that order.
func resolveConfig(cmd *cobra.Command, opts *options) (Config, error) {
	c := DefaultConfig()

	if opts.configFile != "" {
		err := LoadConfigFile(opts.configFile, &c)
		if err != nil {
			return c, err
		}
	}

	env, err := LoadEnv(opts.envFile)
	if err != nil {
		return c, err
	}

	err = ApplyEnv(env, &c)
	if err != nil {
		return c, err
	}

	flags := cmd.Flags()
	if flags.Changed("size") {
		c.TotalBytes = opts.size
	}

	if flags.Changed("line-size") {
		c.LineBytes = opts.lineSize
	}

	if flags.Changed("associativity") {
		c.Associativity = opts.associativity
	}

	if flags.Changed("address-width") {
		c.AddressWidth = opts.addressWidth
	}

	if flags.Changed("file") {
		c.TraceFile = opts.traceFile
	}

	return c, nil
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	if c.TraceFile == "" {
		return errors.New("no trace file given, use --file or " + EnvTraceFile)
	}

	logrus.WithFields(logrus.Fields{
		"size":          c.TotalBytes,
		"line_size":     c.LineBytes,
		"associativity": c.Associativity,
		"address_width": c.AddressWidth,
		"trace":         c.TraceFile,
	}).Info("Cache configured")

	sim, err := cache.MakeBuilder().
		WithConfig(c.Geometry()).
		Build("Cache")
	if err != nil {
		return err
	}

	records, err := trace.LoadFile(c.TraceFile, sim.Geometry().AddressWidth)
	if err != nil {
		return err
	}

	obs, err := attachObservers(sim, opts, len(records))
	if err != nil {
		return err
	}

	results, err := replay(ctx, sim, opts, trace.Addresses(records))
	err = errors.Join(err, obs.finishRecording(sim))

	if err != nil {
		return errors.Join(err, obs.stopMonitor())
	}

	p := report.NewPrinter(cmd.OutOrStdout())
	for i, r := range results {
		p.PrintAccess(records[i].Hex, r)
	}

	p.PrintSummary(sim.Stats())

	logrus.WithField("hit_rate", sim.Stats().HitRate()).Debug("Run finished")

	err = p.Flush()
	if err == nil && obs.monitor != nil {
		holdMonitor(ctx, obs.monitorURL, opts)
	}

	return errors.Join(err, obs.stopMonitor())
}

func replay(
	ctx context.Context,
	sim *cache.Simulator,
	opts *options,
	addrs []uint64,
) ([]cache.AccessResult, error) {
	if opts.parallel > 1 {
		return sim.ReplayParallel(ctx, addrs, opts.parallel)
	}

	return sim.Replay(addrs)
}

// holdMonitor keeps the monitoring server up after the replay until ctx is
// done or the process is interrupted.
func holdMonitor(ctx context.Context, url string, opts *options) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.Infof("Replay finished, monitor still serving %s, "+
		"press Ctrl+C to exit", url)

	if opts.monitorHolding != nil {
		opts.monitorHolding(url)
	}

	<-ctx.Done()
}

type observers struct {
	recorder   datarecording.DataRecorder
	tracer     *trace.DBTracer
	monitor    *monitoring.Monitor
	monitorURL string
}

// attachObservers hooks the recorder, the log tracer and the monitor to sim
// as requested.
func attachObservers(
	sim *cache.Simulator,
	opts *options,
	numAccesses int,
) (*observers, error) {
	obs := &observers{}

	if opts.record != "" {
		recorder, err := datarecording.New(opts.record)
		if err != nil {
			return nil, err
		}

		obs.recorder = recorder
		obs.tracer = trace.NewDBTracer(recorder)
		sim.AcceptHook(obs.tracer)
	}

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		sim.AcceptHook(trace.NewLogTracer(logrus.StandardLogger()))
	}

	if opts.monitor {
		m := monitoring.NewMonitor().
			WithPortNumber(opts.monitorPort).
			WithBrowser(opts.openBrowser)
		m.RegisterSimulator(sim, uint64(numAccesses))

		url, err := m.StartServer()
		if err != nil {
			return nil, errors.Join(err, obs.finishRecording(sim))
		}

		obs.monitor = m
		obs.monitorURL = url
	}

	return obs, nil
}

// finishRecording writes the run summary and closes the recorder.
func (o *observers) finishRecording(sim *cache.Simulator) error {
	if o.recorder == nil {
		return nil
	}

	o.tracer.Finish(sim)
	err := o.recorder.Close()
	o.recorder = nil

	return err
}

func (o *observers) stopMonitor() error {
	if o.monitor == nil {
		return nil
	}

	o.monitor.Complete()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := o.monitor.StopServer(ctx)
	o.monitor = nil

	if err != nil {
		return fmt.Errorf("stop monitor: %w", err)
	}

	return nil
}
