package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/SwatiShah2000/ossim"
	"github.com/SwatiShah2000/ossim/tracing"
)

const customConfigLocation string = "config"

func init() {
	pflag.String(customConfigLocation, "", "Fully qualified path to a YAML configuration file")
	pflag.IntP("max-processes", "n", 0, "Maximum number of total workers to launch")
	pflag.IntP("max-concurrent", "s", 0, "Maximum number of concurrent workers")
	pflag.IntP("interval", "i", -1, "Interval in ms between worker launches")
	pflag.StringP("logfile", "f", "", "Event log file name")
	pflag.BoolP("quiet", "v", false, "Suppress per-request log entries")
	pflag.Int64("seed", 0, "Simulation seed")
	pflag.String("trace-file", "", "Write OpenTelemetry spans to this file")
	pflag.Int("metrics-port", 0, "Serve prometheus metrics on this port (0 disables)")
	pflag.Parse()
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.WithError(err).Fatal("failed to bind flags")
	}

	config := ossim.DefaultConfig()
	if path := viper.GetString(customConfigLocation); path != "" {
		loaded, err := ossim.LoadConfig(path)
		if err != nil {
			log.WithError(err).Fatal("failed to load configuration")
		}
		config = loaded
	}
	applyFlagOverrides(config)

	if traceFile := viper.GetString("trace-file"); traceFile != "" {
		if err := tracing.Init("ossim", "dev", traceFile); err != nil {
			log.WithError(err).Fatal("failed to initialise tracing")
		}
	}

	var options []ossim.Option
	options = append(options, ossim.WithConfig(config))
	if seed := viper.GetInt64("seed"); seed != 0 {
		options = append(options, ossim.WithSeed(seed))
	}

	service, err := ossim.New(options...)
	if err != nil {
		log.WithError(err).Error("setup failed")
		os.Exit(1)
	}
	runtime := service.Runtime()
	runtime.Journal().Mirror(os.Stdout)

	if port := viper.GetInt("metrics-port"); port > 0 {
		registry := prometheus.NewRegistry()
		registry.MustRegister(runtime.Collector())
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stopSignal
		log.WithField("signal", sig.String()).Info("shutting down")
		runtime.Shutdown()
	}()

	log.Info("Starting...")
	if err := runtime.Run(context.Background()); err != nil {
		log.WithError(err).Error("run failed")
		os.Exit(1)
	}
}

func applyFlagOverrides(config *ossim.Config) {
	if n := viper.GetInt("max-processes"); n > 0 {
		config.Launcher.MaxTotal = n
	}
	if s := viper.GetInt("max-concurrent"); s > 0 {
		if s > config.Ledger.Slots {
			log.Warnf("maximum concurrent workers is %d, clamping", config.Ledger.Slots)
			s = config.Ledger.Slots
		}
		config.Launcher.MaxConcurrent = s
	}
	if i := viper.GetInt("interval"); i >= 0 {
		config.Launcher.LaunchInterval = time.Duration(i) * time.Millisecond
	}
	if f := viper.GetString("logfile"); f != "" {
		config.Journal.Path = f
	}
	if viper.GetBool("quiet") {
		config.Journal.Verbose = false
	}
}
