package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/pkg/healthcheck"
)

// StatsProvider reports the reactor statistics.
type StatsProvider interface {
	GetStats() statsdcore.ReceiverStats
}

// ControlSender delivers messages to the reactor control channel.
type ControlSender interface {
	Send(ctx context.Context, msg string) error
}

type HttpServer struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router // should be private, but tests use it directly.
	ready   chan net.Addr
}

type route struct {
	path    string
	handler http.HandlerFunc
	method  string
	name    string
}

const shutdownTimeout = 5 * time.Second

// NewHttpServer creates a server on address. /stats, /control and /metrics are only routed when
// stats, control and metrics are non-nil respectively, the profilers only when enableProf is set.
func NewHttpServer(
	logger logrus.FieldLogger,
	address string,
	enableProf bool,
	stats StatsProvider,
	control ControlSender,
	metrics http.Handler,
	healthChecks []healthcheck.HealthcheckFunc,
	deepChecks []healthcheck.HealthcheckFunc,
) (*HttpServer, error) {
	server := &HttpServer{
		logger:  logger.WithField("component", "web"),
		address: address,
		ready:   make(chan net.Addr, 1),
	}

	routes := []route{
		{path: "/healthcheck", handler: checksHandler(server.logger, "healthcheck", healthChecks), method: "GET", name: "healthcheck_get"},
		{path: "/deepcheck", handler: checksHandler(server.logger, "deepcheck", deepChecks), method: "GET", name: "deepcheck_get"},
	}
	if stats != nil {
		sh := &statsHandler{stats: stats}
		routes = append(routes, route{path: "/stats", handler: sh.getStats, method: "GET", name: "stats_get"})
	}
	if control != nil {
		ch := &controlHandler{logger: server.logger, control: control}
		routes = append(routes, route{path: "/control", handler: ch.postControl, method: "POST", name: "control_post"})
	}
	if metrics != nil {
		routes = append(routes, route{path: "/metrics", handler: metrics.ServeHTTP, method: "GET", name: "metrics_get"})
	}
	if enableProf {
		profiler := &traceProfiler{logger: server.logger}
		routes = append(routes,
			route{path: "/memprof", handler: profiler.MemProf, method: "GET", name: "profmem_get"},
			route{path: "/pprof", handler: profiler.PProf, method: "GET", name: "profcpu_get"},
			route{path: "/trace", handler: profiler.Trace, method: "GET", name: "proftrace_get"},
		)
	}

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	server.logger.WithFields(logrus.Fields{
		"address":        address,
		"enable-stats":   stats != nil,
		"enable-control": control != nil,
		"enable-metrics": metrics != nil,
		"enable-prof":    enableProf,
	}).Info("Created server")

	return server, nil
}

func (hs *HttpServer) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(404)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.HandleFunc(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %v", route.name, err)
		}
	}

	return router, nil
}

func (hs *HttpServer) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logFields := logrus.Fields{
			"srcip": strings.Split(req.RemoteAddr, ":")[0],
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route == nil {
			logFields["method"] = req.Method
		} else {
			logFields["route"] = route.GetName()
		}
		if source := req.Header.Get("X-Forwarded-For"); source != "" {
			logFields["forwarded_for"] = source
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		hs.logger.WithFields(logFields).Debug("request")
	})
}

// Addr returns the address the server listens on once it is listening.
func (hs *HttpServer) Addr() <-chan net.Addr {
	return hs.ready
}

// Run serves until ctx is done, then shuts down, giving open requests shutdownTimeout to finish.
func (hs *HttpServer) Run(ctx context.Context) {
	listener, err := net.Listen("tcp", hs.address)
	if err != nil {
		hs.logger.WithError(err).Error("web server failed to listen")
		return
	}
	hs.ready <- listener.Addr()
	hs.logger.WithField("address", listener.Addr().String()).Info("listening")

	server := &http.Server{Handler: hs.Router}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		hs.logger.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			hs.logger.WithError(err).Warn("failed to stop web server")
		}
	}()

	if err := server.Serve(listener); err != http.ErrServerClosed {
		hs.logger.WithError(err).Error("web server failed")
		return
	}
	<-stopped
}
