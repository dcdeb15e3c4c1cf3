package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/statsdcore/pkg/healthcheck"
)

type checkReport struct {
	OK     []string `json:"ok"`
	Failed []string `json:"failed"`
}

// checksHandler serves the outcome of checks as JSON. Any failed check makes the response a 500.
func checksHandler(logger logrus.FieldLogger, name string, checks []healthcheck.HealthcheckFunc) http.HandlerFunc {
	return func(resp http.ResponseWriter, req *http.Request) {
		var report checkReport
		report.OK, report.Failed = healthcheck.Run(checks)
		status := http.StatusOK
		if len(report.Failed) > 0 {
			status = http.StatusInternalServerError
			logger.WithFields(logrus.Fields{
				"check":  name,
				"failed": report.Failed,
			}).Debug("checks failed")
		}
		resp.Header().Set("content-type", "application/json")
		resp.WriteHeader(status)
		_ = jsoniter.NewEncoder(resp).Encode(report)
	}
}
