package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/internal/util"
	"github.com/atlassian/statsdcore/pkg/sinks"
	"github.com/atlassian/statsdcore/pkg/stats"
	"github.com/atlassian/statsdcore/pkg/statsd"
)

const (
	// ParamVerbose enables verbose logging.
	ParamVerbose = "verbose"
	// ParamJSON makes logger log in JSON format.
	ParamJSON = "json"
	// ParamConfigPath provides file with configuration.
	ParamConfigPath = "config-path"
	// ParamVersion makes program output its version.
	ParamVersion = "version"
)

// internalNamespace prefixes the names of internal metrics.
const internalNamespace = "statsdcore"

func main() {
	v, version, err := setupConfiguration(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		logrus.Fatalf("Error while parsing configuration: %v", err)
	}
	if version {
		fmt.Printf("Version: %s - Commit: %s - Date: %s\n", Version, GitCommit, BuildDate)
		return
	}
	if err := run(v); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func run(v *viper.Viper) error {
	logger := logrus.StandardLogger()
	logger.WithField("version", Version).Info("Starting server")
	s, err := constructServer(v, logger)
	if err != nil {
		return err
	}

	ctx, cancelFunc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFunc()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// metricsRunner is implemented by sinks which report their own internal metrics.
type metricsRunner interface {
	RunMetrics(ctx context.Context, interval time.Duration)
}

func constructServer(v *viper.Viper, logger logrus.FieldLogger) (*statsd.Server, error) {
	var runnables []statsdcore.Runnable
	statsInterval := v.GetDuration(statsdcore.ParamStatsInterval)

	// Sinks
	sinkNames := util.GetStringList(v, statsdcore.ParamSinks)
	if len(sinkNames) == 0 {
		return nil, errors.New("at least one sink is required")
	}
	sinkList := make(statsdcore.MultiSink, 0, len(sinkNames))
	for _, sinkName := range sinkNames {
		sink, err := sinks.InitSink(sinkName, v, logger)
		if err != nil {
			return nil, err
		}
		sinkList = append(sinkList, sink)
		runnables = statsdcore.MaybeAppendRunnable(runnables, sink)
		if mr, ok := sink.(metricsRunner); ok && statsInterval > 0 {
			runnables = append(runnables, func(ctx context.Context) {
				mr.RunMetrics(ctx, statsInterval)
			})
		}
	}
	var sink statsdcore.Sink = sinkList
	if len(sinkList) == 1 {
		sink = sinkList[0]
	}

	// Statser
	statser, err := stats.NewStatserFromName(v.GetString(statsdcore.ParamStatserType), internalNamespace, logger.WithField("component", "statser"))
	if err != nil {
		return nil, err
	}

	s := statsd.NewServer(logger, sink)
	s.Runnables = runnables
	s.Statser = statser
	if ps, ok := statser.(*stats.PrometheusStatser); ok {
		s.MetricsHandler = ps.Handler()
	}
	s.BadLineRateLimitPerSecond = rate.Limit(v.GetFloat64(statsdcore.ParamBadLinesPerMinute) / 60.0)
	s.MetricsAddr = v.GetString(statsdcore.ParamMetricsAddr)
	s.WebAddr = v.GetString(statsdcore.ParamWebAddr)
	s.EnableProf = v.GetBool(statsdcore.ParamEnableProf)
	s.ReceiveBufferSize = v.GetInt(statsdcore.ParamReceiveBufferSize)
	s.ReceiveBatchSize = v.GetInt(statsdcore.ParamReceiveBatchSize)
	s.MaxQueueSize = v.GetInt(statsdcore.ParamMaxQueueSize)
	s.ControlQueueSize = v.GetInt(statsdcore.ParamControlQueueSize)
	s.PollTimeout = v.GetDuration(statsdcore.ParamPollTimeout)
	s.StatsInterval = statsInterval
	return s, nil
}

func setupConfiguration(args []string) (*viper.Viper, bool, error) {
	v := viper.New()
	defer setupLogger(v) // Apply logging configuration in case of early exit
	util.InitViper(v, "")

	var version bool

	cmd := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

	cmd.BoolVar(&version, ParamVersion, false, "Print the version and exit")
	cmd.Bool(ParamVerbose, false, "Verbose")
	cmd.Bool(ParamJSON, false, "Log in JSON format")
	cmd.String(ParamConfigPath, "", "Path to the configuration file")

	statsdcore.AddFlags(cmd)

	cmd.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(err) // Should never happen
		}
	})

	if err := cmd.Parse(args); err != nil {
		return nil, false, err
	}

	configPath := v.GetString(ParamConfigPath)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, false, err
		}
	}

	return v, version, nil
}

func setupLogger(v *viper.Viper) {
	if v.GetBool(ParamVerbose) {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if v.GetBool(ParamJSON) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
