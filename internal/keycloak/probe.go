package keycloak

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kcdev/pkg/logging"
)

const (
	// probeInterval is how long to wait between readiness checks.
	probeInterval = 2 * time.Second

	// probeGetTimeout bounds each individual readiness request.
	probeGetTimeout = 5 * time.Second
)

// healthURL returns the management health endpoint for a local instance.
func healthURL(managementPort int) string {
	return fmt.Sprintf("http://localhost:%d/health/ready", managementPort)
}

// realmURL returns the public realm endpoint for a local instance.
func realmURL(httpPort int, realm string) string {
	return fmt.Sprintf("http://localhost:%d/realms/%s", httpPort, realm)
}

// CheckHealth reports whether the Keycloak management endpoint on the given
// port answers its readiness probe.
func CheckHealth(ctx context.Context, managementPort int) bool {
	return checkEndpoint(ctx, healthURL(managementPort))
}

func checkEndpoint(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, probeGetTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// readinessProbe polls a starting instance until it serves traffic. Readiness
// has two phases sharing one time budget: first the management health
// endpoint must answer, then, when a realm was imported, the realm endpoint
// must resolve so clients never observe a half started instance.
type readinessProbe struct {
	httpPort       int
	managementPort int
	realm          string
	logPath        string

	// alive reports whether the supervised process is still up. A dead
	// process ends the wait immediately instead of burning the budget.
	alive func() bool

	// check answers whether an endpoint is up. Swapped in tests.
	check func(ctx context.Context, url string) bool

	interval time.Duration
}

func newReadinessProbe(httpPort, managementPort int, realm, logPath string, alive func() bool) *readinessProbe {
	return &readinessProbe{
		httpPort:       httpPort,
		managementPort: managementPort,
		realm:          realm,
		logPath:        logPath,
		alive:          alive,
		check:          checkEndpoint,
		interval:       probeInterval,
	}
}

// wait blocks until the instance is ready, the budget runs out, the process
// dies, or ctx is cancelled.
func (p *readinessProbe) wait(ctx context.Context, budget time.Duration) error {
	deadline := time.Now().Add(budget)

	health := healthURL(p.managementPort)
	logging.Debug("Probe", "Waiting for %s (budget %s)", health, budget)
	if err := p.pollUntil(ctx, deadline, budget, health); err != nil {
		return err
	}

	if p.realm != "" {
		realm := realmURL(p.httpPort, p.realm)
		logging.Debug("Probe", "Health is up, waiting for imported realm at %s", realm)
		if err := p.pollUntil(ctx, deadline, budget, realm); err != nil {
			return err
		}
	}

	logging.Debug("Probe", "Instance on port %d is ready", p.httpPort)
	return nil
}

func (p *readinessProbe) pollUntil(ctx context.Context, deadline time.Time, budget time.Duration, url string) error {
	for {
		if p.alive != nil && !p.alive() {
			return &ReadyTimeoutError{
				Timeout:   budget,
				HealthURL: url,
				LogPath:   p.logPath,
				Died:      true,
			}
		}

		if p.check(ctx, url) {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &ReadyTimeoutError{
				Timeout:   budget,
				HealthURL: url,
				LogPath:   p.logPath,
			}
		}

		pause := p.interval
		if pause > remaining {
			pause = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}
