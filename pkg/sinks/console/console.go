package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/internal/util"
	"github.com/atlassian/statsdcore/pkg/pool"
)

const (
	// SinkName is the name of this sink.
	SinkName = "console"
	// FormatText writes each measurement in its wire form.
	FormatText = "text"
	// FormatJSON writes each measurement as a JSON object.
	FormatJSON = "json"
	// DefaultFormat is the default output format.
	DefaultFormat = FormatText
)

const paramFormat = "format"

// maxRetainedBuffer bounds the buffers kept for reuse after formatting a large batch.
const maxRetainedBuffer = 64 * 1024

// Client writes every measurement it accepts to an io.Writer, one per line.
type Client struct {
	logger logrus.FieldLogger
	format string
	pool   *pool.BytesBuffer

	mu sync.Mutex // protects w
	w  io.Writer
}

// jsonMeasurement is the JSON form of a single measurement. Timer values are in milliseconds.
type jsonMeasurement struct {
	Type  string  `json:"type"`
	Name  string  `json:"name"`
	Value int64   `json:"value"`
	Rate  float64 `json:"rate,omitempty"`
	Kind  string  `json:"kind,omitempty"` // for deletes
}

// NewClientFromViper constructs a Client writing to stdout.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (statsdcore.Sink, error) {
	c := util.GetSubViper(v, SinkName)
	c.SetDefault(paramFormat, DefaultFormat)
	return NewClient(logger, os.Stdout, c.GetString(paramFormat))
}

// NewClient constructs a Client writing to w in the given format.
func NewClient(logger logrus.FieldLogger, w io.Writer, format string) (*Client, error) {
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("[%s] %s must be %q or %q, got %q", SinkName, paramFormat, FormatText, FormatJSON, format)
	}
	logger.WithField(paramFormat, format).Info("Created console sink")
	return &Client{
		logger: logger,
		format: format,
		pool:   pool.NewBytesBuffer(256, maxRetainedBuffer),
		w:      w,
	}, nil
}

// Accept writes m, one line per measurement of a batch.
func (c *Client) Accept(ctx context.Context, m statsdcore.Measurement) {
	buf := c.pool.Get()
	defer c.pool.Put(buf)

	statsdcore.Each(m, func(m statsdcore.Measurement) {
		c.render(buf, m)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := buf.WriteTo(c.w); err != nil {
		c.logger.WithError(err).Warn("Failed to write measurements")
	}
}

// Reject logs the payload that failed to parse.
func (c *Client) Reject(ctx context.Context, err error) {
	c.logger.WithError(err).Debug("Rejected payload")
}

func (c *Client) render(buf *bytes.Buffer, m statsdcore.Measurement) {
	if c.format == FormatText {
		buf.WriteString(m.String())
		buf.WriteByte('\n')
		return
	}
	b, err := jsoniter.Marshal(toJSON(m))
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode measurement")
		return
	}
	buf.Write(b)
	buf.WriteByte('\n')
}

func toJSON(m statsdcore.Measurement) jsonMeasurement {
	switch v := m.(type) {
	case statsdcore.Counter:
		return jsonMeasurement{Type: "counter", Name: v.Name, Value: v.Value, Rate: v.Rate}
	case statsdcore.Timer:
		return jsonMeasurement{Type: "timer", Name: v.Name, Value: v.Duration.Milliseconds(), Rate: v.Rate}
	case statsdcore.GaugeAbs:
		return jsonMeasurement{Type: "gauge", Name: v.Name, Value: v.Value}
	case statsdcore.GaugeDelta:
		return jsonMeasurement{Type: "gauge_delta", Name: v.Name, Value: v.Value}
	case statsdcore.Set:
		return jsonMeasurement{Type: "set", Name: v.Name, Value: v.Value}
	case statsdcore.Delete:
		return jsonMeasurement{Type: "delete", Name: v.Name, Kind: v.Type.String()}
	}
	return jsonMeasurement{Type: "unknown"}
}
