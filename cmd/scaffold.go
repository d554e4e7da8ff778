package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oprf-network/oprf-node/module/component"
	"github.com/oprf-network/oprf-node/module/irrecoverable"
	"github.com/oprf-network/oprf-node/utils/logging"
)

// EnvPrefix prefixes the environment variables overriding flags: --data-dir is read
// from OPRF_DATA_DIR.
const EnvPrefix = "OPRF"

type BaseConfig struct {
	configFile      string
	datadir         string
	listenAddr      string
	logging         logging.Config
	shutdownTimeout time.Duration
}

type namedModuleFn struct {
	fn   func(*NodeBuilder) error
	name string
}

type namedComponentFn struct {
	fn   func(*NodeBuilder) (component.Component, error)
	name string
}

// NodeBuilder assembles a node: the common modules (logger, database, metrics registry,
// http router) are initialized first, then the registered modules in order, then the
// registered components, which run until the node shuts down.
type NodeBuilder struct {
	BaseConfig BaseConfig
	name       string
	flags      *pflag.FlagSet
	Logger     zerolog.Logger
	logCloser  io.Closer
	DB         *badger.DB
	Registry   *prometheus.Registry
	Router     *mux.Router
	modules    []namedModuleFn
	components []namedComponentFn
	// postShutdown releases resources opened by modules, in reverse order
	postShutdown []func() error
}

func OprfNode(name string) *NodeBuilder {
	builder := &NodeBuilder{
		name:  name,
		flags: pflag.NewFlagSet(name, pflag.ContinueOnError),
	}
	builder.baseFlags()
	return builder
}

func (nb *NodeBuilder) baseFlags() {
	defaultLogging := logging.DefaultConfig()
	nb.flags.StringVar(&nb.BaseConfig.configFile, "config", "", "path of an optional config file (yaml, json or toml)")
	nb.flags.StringVarP(&nb.BaseConfig.datadir, "data-dir", "d", "data", "directory of the node's local database")
	nb.flags.StringVar(&nb.BaseConfig.listenAddr, "listen", ":8080", "address of the node api")
	nb.flags.StringVarP(&nb.BaseConfig.logging.Level, "loglevel", "l", defaultLogging.Level, "level for logging output")
	nb.flags.StringVar(&nb.BaseConfig.logging.File, "log-file", "", "optional log file, rotated by size")
	nb.flags.IntVar(&nb.BaseConfig.logging.MaxSizeMB, "log-max-size", defaultLogging.MaxSizeMB, "size in megabytes at which the log file is rotated")
	nb.flags.IntVar(&nb.BaseConfig.logging.MaxBackups, "log-max-backups", defaultLogging.MaxBackups, "number of rotated log files kept")
	nb.flags.IntVar(&nb.BaseConfig.logging.MaxAgeDays, "log-max-age", defaultLogging.MaxAgeDays, "days rotated log files are kept")
	nb.flags.BoolVar(&nb.BaseConfig.logging.Compress, "log-compress", defaultLogging.Compress, "compress rotated log files")
	nb.flags.DurationVar(&nb.BaseConfig.shutdownTimeout, "shutdown-timeout", 30*time.Second, "time allowed for a graceful shutdown")
}

func (nb *NodeBuilder) ExtraFlags(f func(*pflag.FlagSet)) *NodeBuilder {
	f(nb.flags)
	return nb
}

// Module registers an initialization step. Modules run in registration order, after the
// common modules.
func (nb *NodeBuilder) Module(name string, f func(*NodeBuilder) error) *NodeBuilder {
	nb.modules = append(nb.modules, namedModuleFn{fn: f, name: name})
	return nb
}

// Component registers a component, created after all modules and run until shutdown.
func (nb *NodeBuilder) Component(name string, f func(*NodeBuilder) (component.Component, error)) *NodeBuilder {
	nb.components = append(nb.components, namedComponentFn{fn: f, name: name})
	return nb
}

// ShutdownFunc registers a function run once all components stopped.
func (nb *NodeBuilder) ShutdownFunc(f func() error) *NodeBuilder {
	nb.postShutdown = append(nb.postShutdown, f)
	return nb
}

// Command returns the cobra command running the node.
func (nb *NodeBuilder) Command() *cobra.Command {
	command := &cobra.Command{
		Use:           nb.name,
		Short:         fmt.Sprintf("Run an %s", nb.name),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(*cobra.Command, []string) error {
			return BindConfig(nb.flags, nb.BaseConfig.configFile)
		},
		RunE: func(command *cobra.Command, _ []string) error {
			return nb.Run(command.Context())
		},
	}
	command.Flags().AddFlagSet(nb.flags)
	return command
}

// BindConfig overrides every flag not set on the command line with its value from the
// environment or the config file, in that order of precedence.
func BindConfig(flags *pflag.FlagSet, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file: %w", err)
		}
	}
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("could not bind flags: %w", err)
	}

	var err error
	flags.VisitAll(func(flag *pflag.Flag) {
		if err != nil || flag.Changed || !v.IsSet(flag.Name) {
			return
		}
		value := v.GetString(flag.Name)
		if flag.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(flag.Name), ",")
		}
		if setErr := flags.Set(flag.Name, value); setErr != nil {
			err = fmt.Errorf("invalid value for %s: %w", flag.Name, setErr)
		}
	})
	return err
}

func (nb *NodeBuilder) initLogger() error {
	log, closer, err := logging.New(nb.BaseConfig.logging, map[string]string{"node": nb.name})
	if err != nil {
		return err
	}
	nb.Logger = log
	nb.logCloser = closer
	nb.Logger.Info().Msgf("%s starting up", nb.name)
	return nil
}

func (nb *NodeBuilder) initDatabase() error {
	err := os.MkdirAll(nb.BaseConfig.datadir, 0700)
	if err != nil {
		return fmt.Errorf("could not create data directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(nb.BaseConfig.datadir).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("could not open key-value store: %w", err)
	}
	nb.DB = db
	nb.ShutdownFunc(db.Close)
	return nil
}

func (nb *NodeBuilder) initMetrics() {
	nb.Registry = prometheus.NewRegistry()
	nb.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	nb.Router = mux.NewRouter()
	nb.Router.Handle("/metrics", promhttp.HandlerFor(nb.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Run initializes the node and blocks until it shut down, either because ctx was
// cancelled, an interrupt was received or a component failed. The returned error is
// the failure, if any. Failures after the logger was set up are already logged, see
// IsLogged.
func (nb *NodeBuilder) Run(ctx context.Context) error {
	if err := nb.initLogger(); err != nil {
		return err
	}
	defer nb.logCloser.Close()

	node, err := nb.build()
	defer nb.shutdown()
	if err != nil {
		nb.Logger.Error().Err(err).Msg("could not initialize node")
		return Logged(err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = node.run(ctx, nb.BaseConfig.shutdownTimeout)
	if err != nil {
		nb.Logger.Error().Err(err).Msg("unhandled irrecoverable error")
		return Logged(err)
	}
	nb.Logger.Info().Msgf("%s shutdown complete", nb.name)
	return nil
}

func (nb *NodeBuilder) build() (*Node, error) {
	if err := nb.initDatabase(); err != nil {
		return nil, err
	}
	nb.initMetrics()

	for _, m := range nb.modules {
		if err := m.fn(nb); err != nil {
			return nil, fmt.Errorf("could not initialize %s: %w", m.name, err)
		}
		nb.Logger.Debug().Msgf("%s initialized", m.name)
	}

	builder := component.NewComponentManagerBuilder()
	for _, c := range nb.components {
		comp, err := c.fn(nb)
		if err != nil {
			return nil, fmt.Errorf("could not create %s: %w", c.name, err)
		}
		builder.AddWorker(nb.runComponent(c.name, comp))
	}
	builder.AddWorker(nb.serveHTTP)

	return &Node{
		ComponentManager: builder.Build(),
		Logger:           nb.Logger,
		name:             nb.name,
	}, nil
}

func (nb *NodeBuilder) runComponent(name string, comp component.Component) component.ComponentWorker {
	return func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		comp.Start(ctx)
		select {
		case <-comp.Ready():
			nb.Logger.Info().Msgf("%s ready", name)
			ready()
		case <-ctx.Done():
		}
		<-comp.Done()
		nb.Logger.Info().Msgf("%s shutdown complete", name)
	}
}

func (nb *NodeBuilder) serveHTTP(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	server := &http.Server{
		Addr:              nb.BaseConfig.listenAddr,
		Handler:           nb.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	nb.Logger.Info().Str("address", nb.BaseConfig.listenAddr).Msg("api server listening")
	ready()

	select {
	case err := <-errs:
		ctx.Throw(fmt.Errorf("api server failed: %w", err))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), nb.BaseConfig.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			nb.Logger.Warn().Err(err).Msg("api server did not shut down cleanly")
		}
	}
}

func (nb *NodeBuilder) shutdown() {
	for i := len(nb.postShutdown) - 1; i >= 0; i-- {
		if err := nb.postShutdown[i](); err != nil {
			nb.Logger.Warn().Err(err).Msg("error releasing node resources")
		}
	}
}

// loggedError marks an error that was already written to the log.
type loggedError struct {
	err error
}

func (e loggedError) Error() string {
	return e.err.Error()
}

func (e loggedError) Unwrap() error {
	return e.err
}

// Logged marks err as already written to the log.
func Logged(err error) error {
	if err == nil {
		return nil
	}
	return loggedError{err: err}
}

// IsLogged returns whether err was already written to the log. Entry points only report
// errors that were not.
func IsLogged(err error) bool {
	var target loggedError
	return errors.As(err, &target)
}
