package main

import (
	"errors"
	"time"

	"github.com/jessevdk/go-flags"
)

// errHelpShown is returned by parseArgs once the help text has been written.
var errHelpShown = errors.New("help shown")

// kindOptions controls generation of a single metric kind.
type kindOptions struct {
	Count       uint64 `long:"count"                    description:"Number of metrics to send"`
	Cardinality uint   `long:"cardinality" default:"1"  description:"Number of distinct metric names"`
	ValueLimit  uint   `long:"value-limit" default:"1"  description:"Values are drawn from [0, limit)"`
}

type commandOptions struct {
	Target       string        `short:"a" long:"address"       default:"127.0.0.1:8125" description:"Address to send metrics"`
	MetricPrefix string        `short:"p" long:"metric-prefix" default:"loadtest."      description:"Metric name prefix"`
	MetricSuffix string        `          long:"metric-suffix" default:".%d"            description:"Metric suffix with cardinality marker"`
	Rate         uint          `short:"r" long:"rate"          default:"1000"           description:"Target packets per second, shared by all workers"`
	DatagramSize uint          `          long:"buffer-size"   default:"1500"           description:"Maximum size of datagram to send"`
	Workers      uint          `short:"w" long:"workers"       default:"1"              description:"Number of parallel workers to use"`
	Duration     time.Duration `short:"d" long:"duration"                               description:"Stop all workers after this long (0 to run until the counts are exhausted)"`
	GaugeDeltas  bool          `          long:"gauge-deltas"                           description:"Send gauges as signed deltas"`

	Counters kindOptions `group:"Counters" namespace:"counter"`
	Gauges   kindOptions `group:"Gauges"   namespace:"gauge"`
	Sets     kindOptions `group:"Sets"     namespace:"set"`
	Timers   kindOptions `group:"Timers"   namespace:"timer"`
}

func (opts *commandOptions) total() uint64 {
	return opts.Counters.Count + opts.Gauges.Count + opts.Sets.Count + opts.Timers.Count
}

func newParser(opts *commandOptions) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.NamespaceDelimiter = "-"
	parser.LongDescription = "" + // because gofmt
		"Sends generated metrics to a statsd server until the counts are exhausted.\n" +
		"Interrupting the loader stops every worker at its next metric.\n\n" +
		"The number of distinct names of a kind is its cardinality, the suffix\n" +
		"marker is replaced with the name's index."
	return parser
}

// parseArgs parses and validates args. The parser is returned so that callers can print help on error.
func parseArgs(args []string) (commandOptions, *flags.Parser, error) {
	var opts commandOptions
	parser := newParser(&opts)

	positional, err := parser.ParseArgs(args)
	if err != nil {
		if isHelp(err) {
			return opts, parser, errHelpShown
		}
		return opts, parser, err
	}
	if len(positional) != 0 {
		// Near as I can tell there's no way to say no positional arguments allowed.
		return opts, parser, errors.New("no positional arguments allowed")
	}
	if opts.total() == 0 {
		return opts, parser, errors.New("at least one of counter-count, gauge-count, set-count, or timer-count must be non-zero")
	}
	if opts.Workers == 0 {
		return opts, parser, errors.New("workers must be non-zero")
	}
	for _, k := range []kindOptions{opts.Counters, opts.Gauges, opts.Sets, opts.Timers} {
		if k.Count > 0 && k.Cardinality == 0 {
			return opts, parser, errors.New("cardinality must be non-zero for every kind with a count")
		}
	}
	return opts, parser, nil
}

// isHelp reports whether err is go-flags asking for the help text. It is safe to
// call with a nil error.
func isHelp(err error) bool {
	var flagError *flags.Error
	return errors.As(err, &flagError) && flagError.Type == flags.ErrHelp
}
