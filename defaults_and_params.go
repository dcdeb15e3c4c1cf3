package statsdcore

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// DefaultSinks is the list of default sinks' names.
var DefaultSinks = []string{"console"}

const (
	// DefaultMetricsAddr is the default address on which to listen for metrics.
	DefaultMetricsAddr = "127.0.0.1:13265"
	// DefaultReceiveBufferSize is the size of the buffer a single datagram is read into.
	// ip packet size is stored in two bytes and that is how big in theory the packet can be.
	DefaultReceiveBufferSize = 0xffff
	// DefaultReceiveBatchSize is the number of datagrams to read in each receive batch.
	DefaultReceiveBatchSize = 50
	// DefaultMaxQueueSize is the default maximum number of datagrams waiting for the reactor.
	DefaultMaxQueueSize = 10000 // arbitrary
	// DefaultControlQueueSize is the default number of buffered control messages.
	DefaultControlQueueSize = 64
	// DefaultPollTimeout is the default poll wait. Zero waits until a source is ready.
	DefaultPollTimeout = time.Duration(0)
	// DefaultStatserType is the default type of statser.
	DefaultStatserType = StatserLogging
	// DefaultStatsInterval is how often internal statistics are reported.
	DefaultStatsInterval = 10 * time.Second
	// DefaultBadLinesPerMinute is the number of bad payloads to log per minute.
	DefaultBadLinesPerMinute = 60
)

const (
	// StatserLogging is the name of the logging statser.
	StatserLogging = "logging"
	// StatserPrometheus is the name of the prometheus statser.
	StatserPrometheus = "prometheus"
	// StatserNull is the name of the null statser.
	StatserNull = "null"
)

const (
	// ParamMetricsAddr is the name of parameter with address on which to listen for metrics.
	ParamMetricsAddr = "metrics-addr"
	// ParamReceiveBufferSize is the name of parameter with the size of a datagram receive buffer.
	ParamReceiveBufferSize = "receive-buffer-size"
	// ParamReceiveBatchSize is the name of parameter with the number of datagrams read per batch.
	ParamReceiveBatchSize = "receive-batch-size"
	// ParamMaxQueueSize is the name of parameter with maximum number of queued datagrams.
	ParamMaxQueueSize = "max-queue-size"
	// ParamControlQueueSize is the name of parameter with the number of buffered control messages.
	ParamControlQueueSize = "control-queue-size"
	// ParamPollTimeout is the name of parameter with the reactor poll timeout.
	ParamPollTimeout = "poll-timeout"
	// ParamSinks is the name of parameter with sinks.
	ParamSinks = "sinks"
	// ParamStatserType is the name of parameter with the type of statser.
	ParamStatserType = "statser-type"
	// ParamStatsInterval is the name of parameter with internal statistics reporting interval.
	ParamStatsInterval = "stats-interval"
	// ParamBadLinesPerMinute is the name of parameter with the number of bad payloads logged per minute.
	ParamBadLinesPerMinute = "bad-lines-per-minute"
	// ParamWebAddr is the name of parameter with the address of the web server. Empty disables it.
	ParamWebAddr = "web-addr"
	// ParamEnableProf is the name of parameter which enables the profiler endpoints of the web server.
	ParamEnableProf = "enable-prof"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ParamMetricsAddr, DefaultMetricsAddr, "Address on which to listen for metrics")
	fs.Int(ParamReceiveBufferSize, DefaultReceiveBufferSize, "Size of the buffer a single datagram is read into")
	fs.Int(ParamReceiveBatchSize, DefaultReceiveBatchSize, "The number of datagrams to read in each receive batch")
	fs.Int(ParamMaxQueueSize, DefaultMaxQueueSize, "Maximum number of datagrams waiting to be parsed")
	fs.Int(ParamControlQueueSize, DefaultControlQueueSize, "Maximum number of buffered control messages")
	fs.Duration(ParamPollTimeout, DefaultPollTimeout, "Reactor poll timeout (0 to wait until a source is ready)")
	fs.String(ParamStatserType, DefaultStatserType, "Statser type to be used for sending metrics")
	fs.Duration(ParamStatsInterval, DefaultStatsInterval, "How often to report internal statistics")
	fs.Float64(ParamBadLinesPerMinute, DefaultBadLinesPerMinute, "Maximum number of bad payloads to log per minute")
	fs.String(ParamWebAddr, "", "If set, use as the address of the web server")
	fs.Bool(ParamEnableProf, false, "Enable the profiler endpoints on the web server")
	//TODO Remove workaround when https://github.com/spf13/viper/issues/112 is fixed
	fs.String(ParamSinks, strings.Join(DefaultSinks, ","), "Comma-separated list of sinks")
}
