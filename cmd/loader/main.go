package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atlassian/statsdcore/pkg/cancel"
)

func main() {
	opts, parser, err := parseArgs(os.Args[1:])
	if err == errHelpShown {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if err != nil {
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nerror parsing command line: %v\n", err)
		os.Exit(1)
	}

	source, token := cancel.NewSource()
	chSignal := make(chan os.Signal, 1)
	signal.Notify(chSignal, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-chSignal
		fmt.Println("Interrupted, stopping workers")
		source.Trigger()
	}()
	if opts.Duration > 0 {
		time.AfterFunc(opts.Duration, source.Trigger)
	}

	run(opts, token, os.Stdout)
}

// run starts the workers and reports progress to out every second until they all stop.
func run(opts commandOptions, token *cancel.Token, out io.Writer) {
	chDone := make(chan struct{}, opts.Workers)
	generators := make([]*metricGenerator, 0, opts.Workers)
	for i := uint(0); i < opts.Workers; i++ {
		generator := newGenerator(opts, rand.New(rand.NewSource(rand.Int63())))
		generators = append(generators, generator)
		go sendMetricsWorker(token.Clone(), opts.Target, opts.DatagramSize, opts.Rate/opts.Workers, generator, chDone)
	}

	statusTicker := time.NewTicker(1 * time.Second)
	defer statusTicker.Stop()
	for running := opts.Workers; running > 0; {
		select {
		case <-chDone:
			running--
		case <-statusTicker.C:
			var counters, gauges, sets, timers uint64
			for _, mg := range generators {
				c, g, s, t := mg.remaining()
				counters, gauges, sets, timers = counters+c, gauges+g, sets+s, timers+t
			}
			_, _ = fmt.Fprintf(out, "%d counters, %d gauges, %d sets, %d timers remaining\n", counters, gauges, sets, timers)
		}
	}
	if token.IsTriggered() {
		_, _ = fmt.Fprintln(out, "Stopped before all metrics were sent")
	}
}

// sendMetricsWorker sends packed datagrams at rate per second until the generator is
// exhausted or token is triggered.
func sendMetricsWorker(
	token *cancel.Token,
	address string,
	bufSize uint,
	rate uint,
	generator *metricGenerator,
	chDone chan<- struct{},
) {
	defer func() { chDone <- struct{}{} }()

	s, err := net.DialTimeout("udp", address, 1*time.Second)
	if err != nil {
		fmt.Printf("Error connecting to %s: %v\n", address, err)
		return
	}
	defer s.Close()

	if rate == 0 {
		rate = 1
	}
	w := &packetWriter{
		w:        s,
		bufSize:  bufSize,
		interval: time.Second / time.Duration(rate),
		next:     time.Now(),
	}

	sb := &strings.Builder{}
	for !token.IsTriggered() && generator.next(sb) {
		w.add(sb.String())
		sb.Reset()
	}
	w.flush()
}

// packetWriter packs lines into datagrams of at most bufSize bytes, sending at most one per interval.
type packetWriter struct {
	w        net.Conn
	b        bytes.Buffer
	bufSize  uint
	interval time.Duration
	next     time.Time
}

func (pw *packetWriter) add(line string) {
	if pw.b.Len() > 0 && uint(pw.b.Len()+len(line)) > pw.bufSize {
		pw.flush()
	}
	pw.b.WriteString(line)
}

func (pw *packetWriter) flush() {
	if pw.b.Len() == 0 {
		return
	}
	if wait := time.Until(pw.next); wait > 0 {
		time.Sleep(wait)
	}
	if _, err := pw.w.Write(pw.b.Bytes()); err != nil {
		fmt.Printf("Pausing for 1 second, error sending packet: %v\n", err)
		time.Sleep(1 * time.Second)
	}
	pw.b.Reset()
	pw.next = pw.next.Add(pw.interval)
}
