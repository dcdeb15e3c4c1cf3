package web

import (
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// maxControlMessage bounds the body of a control request.
const maxControlMessage = 4096

type statsHandler struct {
	stats StatsProvider
}

func (sh *statsHandler) getStats(resp http.ResponseWriter, req *http.Request) {
	resp.Header().Set("content-type", "application/json")
	resp.WriteHeader(http.StatusOK)
	enc := jsoniter.NewEncoder(resp)
	_ = enc.Encode(sh.stats.GetStats())
}

type controlHandler struct {
	logger  logrus.FieldLogger
	control ControlSender
}

func (ch *controlHandler) postControl(resp http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxControlMessage+1))
	if err != nil {
		ch.logger.WithError(err).Info("failed reading control message")
		http.Error(resp, "failed reading body", http.StatusBadRequest)
		return
	}
	if len(body) > maxControlMessage {
		http.Error(resp, "control message too large", http.StatusRequestEntityTooLarge)
		return
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		http.Error(resp, "empty control message", http.StatusBadRequest)
		return
	}
	if err := ch.control.Send(req.Context(), msg); err != nil {
		ch.logger.WithError(err).Warn("failed to deliver control message")
		http.Error(resp, "control channel unavailable", http.StatusServiceUnavailable)
		return
	}
	resp.WriteHeader(http.StatusAccepted)
}
