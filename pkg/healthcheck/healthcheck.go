// Package healthcheck defines the checks the web server reports on /healthcheck and /deepcheck.
package healthcheck

// HealthcheckFunc returns a status message and whether the check passed. It must not block,
// downstream dependencies are reported on from state a watchdog keeps, not by making a roundtrip.
type HealthcheckFunc func() (string, HealthyStatus)

type HealthyStatus bool

const (
	Healthy   = HealthyStatus(true)
	Unhealthy = HealthyStatus(false)
)

func (s HealthyStatus) String() string {
	if s == Healthy {
		return "healthy"
	}
	return "unhealthy"
}

// HealthCheckProvider is implemented by components which can tell whether this process is able to receive.
type HealthCheckProvider interface {
	HealthChecks() []HealthcheckFunc
}

// DeepCheckProvider is implemented by sinks which can report on the state of their downstream.
type DeepCheckProvider interface {
	DeepChecks() []HealthcheckFunc
}

// MaybeAppendHealthChecks appends the checks of maybeProvider to healthChecks and deepChecks,
// for whichever of the provider interfaces it implements.
func MaybeAppendHealthChecks(healthChecks []HealthcheckFunc, deepChecks []HealthcheckFunc, maybeProvider interface{}) ([]HealthcheckFunc, []HealthcheckFunc) {
	if hcp, ok := maybeProvider.(HealthCheckProvider); ok {
		healthChecks = append(healthChecks, hcp.HealthChecks()...)
	}
	if dcp, ok := maybeProvider.(DeepCheckProvider); ok {
		deepChecks = append(deepChecks, dcp.DeepChecks()...)
	}
	return healthChecks, deepChecks
}

// Run evaluates checks in order and splits their messages by outcome. Both results are
// non-nil so that they encode as empty arrays.
func Run(checks []HealthcheckFunc) (ok []string, failed []string) {
	ok = []string{}
	failed = []string{}
	for _, check := range checks {
		msg, status := check()
		if status == Healthy {
			ok = append(ok, msg)
		} else {
			failed = append(failed, msg)
		}
	}
	return ok, failed
}
