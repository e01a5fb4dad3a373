// Command versed runs the Verse session server: it loads a TOML
// configuration, opens the user database (CSV or LDAP), and serves
// stream connections until SIGINT, per spec.md §6 and §4.9.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pascaldekloe/verse/auth"
	"github.com/pascaldekloe/verse/metrics"
	"github.com/pascaldekloe/verse/vconfig"
	"github.com/pascaldekloe/verse/verseserver"
	"github.com/pascaldekloe/verse/vlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"net/http"
)

var (
	configPath string
	debugLevel string
)

func main() {
	root := &cobra.Command{
		Use:   "versed",
		Short: "Verse session server",
		RunE:  run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (TOML)")
	root.Flags().StringVarP(&debugLevel, "debug", "d", "info", "debug level: none, info, warning, error, debug")
	root.MarkFlagRequired("config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := parseLevel(debugLevel)
	if err != nil {
		return err
	}

	cfg, err := vconfig.Load(configPath)
	if err != nil {
		return err
	}

	log := vlog.New(os.Stderr, level, "versed")

	checker, err := buildChecker(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewSet(reg)
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go http.ListenAndServe(cfg.MetricsListen, mux)
	}

	host, _, _ := splitHost(cfg.Listen)
	srv := verseserver.New(cfg, host, checker, m, log)
	srv.Registry.HandleSignals(func() {
		log.Info("reload requested, rebuilding user database")
		if c, err := buildChecker(cfg); err == nil {
			checker = c
		} else {
			log.WithError(err).Error("reload failed, keeping previous database")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.WithError(err).Error("server exited")
		return err
	}
	return nil
}

func parseLevel(s string) (logrus.Level, error) {
	switch s {
	case "none":
		return logrus.PanicLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	default:
		return 0, fmt.Errorf("versed: unknown debug level %q", s)
	}
}

func buildChecker(cfg *vconfig.Config) (auth.Checker, error) {
	switch cfg.AuthMethod {
	case "ldap":
		return &auth.LDAP{
			URL:        cfg.LDAPURL,
			BindDN:     cfg.LDAPBindDN,
			BindPass:   cfg.LDAPBindPass,
			BaseDN:     cfg.LDAPBaseDN,
			UserFilter: cfg.LDAPUserFilter,
		}, nil
	default:
		return auth.NewCSV(cfg.AuthCSVPath), nil
	}
}

func splitHost(listen string) (host, port string, err error) {
	for i := len(listen) - 1; i >= 0; i-- {
		if listen[i] == ':' {
			return listen[:i], listen[i+1:], nil
		}
	}
	return listen, "", nil
}
