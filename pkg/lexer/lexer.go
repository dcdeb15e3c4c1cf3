package lexer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/atlassian/statsdcore"
)

// Only the first four tokens of a line carry meaning, the rest are ignored.
const maxTokens = 4

const deleteValue = "delete"

var (
	ErrEmptyPayload = errors.New("empty payload")
	ErrEmptyLine    = errors.New("no tokens in line")
	ErrUnknownType  = errors.New("unknown type")
	ErrMissingType  = errors.New("missing type")
	ErrInvalidValue = errors.New("invalid value")
	ErrInvalidRate  = errors.New("invalid sample rate")
)

// ParseError reports the line of a payload that failed to parse.
type ParseError struct {
	Line  int    // 1-based line number within the payload, 0 for payload level errors.
	Input string // The offending line.
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Lexer decodes statsd payloads. The zero value is ready to use. A Lexer holds
// scratch space only and must not be used concurrently, the package level
// functions allocate their own.
type Lexer struct {
	// any field added must be considered in Lexer.split
	tokens [maxTokens]string
	n      int // number of non-empty tokens seen, may exceed maxTokens
}

// Parse decodes a newline separated payload.
//
// Empty lines are skipped. A payload with no lines, or with any line that fails
// to parse, is an error and no measurements are returned. A payload of exactly
// one line returns that measurement, more than one returns a statsdcore.Batch.
func Parse(input string) (statsdcore.Measurement, error) {
	var l Lexer
	return l.Parse(input)
}

// ParseBytes is Parse for a byte slice. The input is copied.
func ParseBytes(input []byte) (statsdcore.Measurement, error) {
	var l Lexer
	return l.Parse(string(input))
}

// ParseLine decodes a single line, which must not contain a newline.
func ParseLine(line string) (statsdcore.Measurement, error) {
	var l Lexer
	m, err := l.line(line)
	if err != nil {
		return nil, &ParseError{Line: 1, Input: line, Err: err}
	}
	return m, nil
}

// Parse decodes a newline separated payload, see the package level Parse.
func (l *Lexer) Parse(input string) (statsdcore.Measurement, error) {
	var first statsdcore.Measurement
	var batch statsdcore.Batch
	count := 0
	lineNo := 0
	for len(input) > 0 {
		var line string
		idx := strings.IndexByte(input, '\n')
		// protocol does not require line to end in \n
		if idx == -1 {
			line, input = input, ""
		} else {
			line, input = input[:idx], input[idx+1:]
		}
		lineNo++
		if line == "" {
			continue
		}
		m, err := l.line(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Input: line, Err: err}
		}
		count++
		switch count {
		case 1:
			first = m
		case 2:
			batch = statsdcore.Batch{first, m}
		default:
			batch = append(batch, m)
		}
	}
	switch count {
	case 0:
		return nil, &ParseError{Err: ErrEmptyPayload}
	case 1:
		return first, nil
	}
	return batch, nil
}

// split breaks line on ':' and '|' keeping non-empty tokens only.
func (l *Lexer) split(line string) {
	l.n = 0
	start := 0
	for i := 0; i <= len(line); i++ {
		if i < len(line) && line[i] != ':' && line[i] != '|' {
			continue
		}
		if i > start {
			if l.n < maxTokens {
				l.tokens[l.n] = line[start:i]
			}
			l.n++
		}
		start = i + 1
	}
}

func (l *Lexer) line(line string) (statsdcore.Measurement, error) {
	l.split(line)
	switch l.n {
	case 0:
		return nil, ErrEmptyLine
	case 1:
		// bare name is an increment
		return statsdcore.Counter{Name: l.tokens[0], Value: 1, Rate: 1}, nil
	case 2:
		return l.implicit()
	default:
		return l.explicit()
	}
}

// implicit handles "name:X" where X is either a type tag or a counter value.
func (l *Lexer) implicit() (statsdcore.Measurement, error) {
	name, x := l.tokens[0], l.tokens[1]
	if kind, ok := statsdcore.ParseKind(x); ok {
		return implicitValue(name, kind), nil
	}
	if x == deleteValue {
		return nil, ErrMissingType
	}
	v, err := strconv.ParseInt(x, 10, 64)
	if err != nil {
		return nil, ErrInvalidValue
	}
	return statsdcore.Counter{Name: name, Value: v, Rate: 1}, nil
}

func implicitValue(name string, kind statsdcore.MetricKind) statsdcore.Measurement {
	switch kind {
	case statsdcore.COUNTER:
		return statsdcore.Counter{Name: name, Value: 1, Rate: 1}
	case statsdcore.GAUGE:
		return statsdcore.GaugeAbs{Name: name}
	case statsdcore.SET:
		return statsdcore.Set{Name: name}
	default: // TIMER, HISTOGRAM
		return statsdcore.Timer{Name: name, Rate: 1}
	}
}

// explicit handles "name:value|type[|@rate]...".
func (l *Lexer) explicit() (statsdcore.Measurement, error) {
	name, value, tag := l.tokens[0], l.tokens[1], l.tokens[2]
	var rateToken string
	if l.n > 3 {
		rateToken = l.tokens[3]
	}
	// "name:|g|@0.1" loses its empty value in split, shift the tokens back.
	if _, ok := statsdcore.ParseKind(value); ok && strings.HasPrefix(tag, "@") {
		value, tag, rateToken = "", value, tag
	}

	kind, ok := statsdcore.ParseKind(tag)
	if !ok {
		return nil, ErrUnknownType
	}
	if value == deleteValue {
		return statsdcore.Delete{Type: kind, Name: name}, nil
	}

	rate := float64(1)
	if strings.HasPrefix(rateToken, "@") {
		r, err := strconv.ParseFloat(rateToken[1:], 64)
		if err != nil || !(r > 0 && r <= 1) {
			return nil, ErrInvalidRate
		}
		rate = r
	}

	var v int64
	if value != "" {
		var err error
		v, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, ErrInvalidValue
		}
	}

	switch kind {
	case statsdcore.COUNTER:
		return statsdcore.Counter{Name: name, Value: v, Rate: rate}, nil
	case statsdcore.GAUGE:
		if value != "" && (value[0] == '+' || value[0] == '-') {
			return statsdcore.GaugeDelta{Name: name, Value: v}, nil
		}
		return statsdcore.GaugeAbs{Name: name, Value: v}, nil
	case statsdcore.SET:
		return statsdcore.Set{Name: name, Value: v}, nil
	default: // TIMER, HISTOGRAM
		if v > math.MaxInt64/int64(time.Millisecond) || v < math.MinInt64/int64(time.Millisecond) {
			return nil, ErrInvalidValue
		}
		return statsdcore.Timer{Name: name, Duration: time.Duration(v) * time.Millisecond, Rate: rate}, nil
	}
}
