package web

import (
	"net/http"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultProfileDuration = 30 * time.Second
	maxProfileDuration     = 5 * time.Minute
)

// traceProfiler serves one CPU profile or execution trace at a time.
type traceProfiler struct {
	logger logrus.FieldLogger
	mutex  sync.Mutex
}

// profileDuration reads the "seconds" query parameter, capped at maxProfileDuration.
func profileDuration(r *http.Request) (time.Duration, bool) {
	s := r.URL.Query().Get("seconds")
	if s == "" {
		return defaultProfileDuration, true
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > maxProfileDuration {
		d = maxProfileDuration
	}
	return d, true
}

// record runs start, waits for the profile duration or the client to go away, then runs stop.
func (tp *traceProfiler) record(w http.ResponseWriter, r *http.Request, kind string, start func() error, stop func()) {
	d, ok := profileDuration(r)
	if !ok {
		http.Error(w, "invalid seconds", http.StatusBadRequest)
		return
	}
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	w.Header().Set("Content-Type", "application/octet-stream")
	if err := start(); err != nil {
		tp.logger.WithError(err).WithField("profile", kind).Warn("failed to start profile")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer stop()
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
	case <-r.Context().Done():
	}
}

func (tp *traceProfiler) Trace(w http.ResponseWriter, r *http.Request) {
	tp.record(w, r, "trace", func() error { return trace.Start(w) }, trace.Stop)
}

func (tp *traceProfiler) PProf(w http.ResponseWriter, r *http.Request) {
	tp.record(w, r, "cpu", func() error { return pprof.StartCPUProfile(w) }, pprof.StopCPUProfile)
}

func (tp *traceProfiler) MemProf(w http.ResponseWriter, r *http.Request) {
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	runtime.GC()
	w.Header().Set("Content-Type", "application/octet-stream")
	if err := pprof.Lookup("heap").WriteTo(w, 0); err != nil {
		tp.logger.WithError(err).Warn("failed to write heap profile")
	}
}
