package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/mgramigna/cql-language-server/internal/config"
	_ "github.com/mgramigna/cql-language-server/internal/plugin/debug"
	"github.com/mgramigna/cql-language-server/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

var log = commonlog.GetLogger("cqlls")

type rootOptions struct {
	logfile     string
	verbose     int
	configPath  string
	metricsAddr string
	tcpAddr     string
	wsAddr      string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "cqlls",
		Short:        "Language server for Clinical Quality Language",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var path *string
			if opts.logfile != "" {
				path = &opts.logfile
			}
			// Logger used by glsp as well.
			commonlog.Configure(opts.verbose, path)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}
	cmd.SetVersionTemplate("cqlls LSP server version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logfile, "logfile", "", "path to log file (default stderr)")
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity")
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	local := cmd.Flags()
	local.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	local.StringVar(&opts.tcpAddr, "tcp", "", "listen for a client on this TCP address instead of stdio")
	local.StringVar(&opts.wsAddr, "websocket", "", "listen for a client on this WebSocket address instead of stdio")
	cmd.MarkFlagsMutuallyExclusive("tcp", "websocket")

	cmd.AddCommand(newTranslateCommand(opts))
	return cmd
}

func serve(opts *rootOptions) error {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	s, err := server.NewServer(nil, server.Options{
		Config:     cfg,
		Registerer: registry,
		Version:    Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, registry)
	}

	ls := s.New(opts.verbose > 2)
	errc := make(chan error, 1)
	go func() {
		switch {
		case opts.tcpAddr != "":
			errc <- ls.RunTCP(opts.tcpAddr)
		case opts.wsAddr != "":
			errc <- ls.RunWebSocket(opts.wsAddr)
		default:
			errc <- ls.RunStdio()
		}
	}()
	log.Infof("starting cqlls %s (session %s)", Version, s.Session())

	select {
	case <-s.Exited().Done():
		code, _, _ := s.Exited().TryGet()
		log.Infof("exiting with code %d", code)
		os.Exit(code)
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("metrics server: %s", err)
	}
}
