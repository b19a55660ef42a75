// Package health probes the components an editing session depends on.
//
// Features:
//   - Collaborator probe over the service's /health route
//   - Quota store connectivity probe
//   - Quota usage probe (degraded near the daily limit)
//   - Per-check timeouts, run concurrently
//   - Aggregated status and an HTTP endpoint
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"gobengali/internal/quota"
	"gobengali/internal/service"
)

// DefaultTimeout bounds a check that registers without one.
const DefaultTimeout = 5 * time.Second

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is degraded but functional.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusUnknown indicates the component has not been checked.
	StatusUnknown Status = "unknown"
)

// CheckResult represents the result of a health check.
type CheckResult struct {
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ns"`
	Error       string         `json:"error,omitempty"`
}

// Check is a function that performs a health check.
type Check func(ctx context.Context) CheckResult

// Component represents a health-checkable component.
type Component struct {
	Name     string
	Critical bool // If true, failure makes overall status unhealthy
	Check    Check
	Timeout  time.Duration
}

// Checker runs registered checks and keeps their last results.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	results    map[string]CheckResult
	now        func() time.Time
}

// NewChecker creates a new Checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		results:    make(map[string]CheckResult),
		now:        time.Now,
	}
}

// Register registers a health check component.
func (c *Checker) Register(component *Component) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if component.Timeout <= 0 {
		component.Timeout = DefaultTimeout
	}
	c.components[component.Name] = component
	c.results[component.Name] = CheckResult{Status: StatusUnknown}
}

// RegisterFunc registers a check function with the default timeout.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// Names returns the registered component names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all registered health checks concurrently.
func (c *Checker) Check(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	components := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		components = append(components, comp)
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(components))
	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for _, comp := range components {
		wg.Add(1)
		go func(comp *Component) {
			defer wg.Done()
			result := c.run(ctx, comp)
			rmu.Lock()
			results[comp.Name] = result
			rmu.Unlock()
		}(comp)
	}
	wg.Wait()
	return results
}

// CheckComponent runs a single component's health check.
func (c *Checker) CheckComponent(ctx context.Context, name string) (CheckResult, bool) {
	c.mu.RLock()
	comp, ok := c.components[name]
	c.mu.RUnlock()
	if !ok {
		return CheckResult{}, false
	}
	return c.run(ctx, comp), true
}

// run executes one check under its timeout, converting a panic or an
// overrun into an unhealthy result.
func (c *Checker) run(ctx context.Context, comp *Component) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := c.now()
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{
					Status:  StatusUnhealthy,
					Message: "check panicked",
					Error:   fmt.Sprintf("%v", r),
				}
			}
		}()
		done <- comp.Check(checkCtx)
	}()

	var result CheckResult
	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = CheckResult{
			Status:  StatusUnhealthy,
			Message: "check timed out",
			Error:   checkCtx.Err().Error(),
		}
	}
	result.LastChecked = start
	result.Duration = c.now().Sub(start)

	c.mu.Lock()
	c.results[comp.Name] = result
	c.mu.Unlock()
	return result
}

// Results returns the last result of every component.
func (c *Checker) Results() map[string]CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make(map[string]CheckResult, len(c.results))
	for k, v := range c.results {
		results[k] = v
	}
	return results
}

// OverallStatus aggregates the last results. A failing critical
// component makes the whole unhealthy; any other failure degrades it.
func (c *Checker) OverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hasUnknown := false
	hasDegraded := false

	for name, result := range c.results {
		comp := c.components[name]
		if comp == nil {
			continue
		}

		switch result.Status {
		case StatusUnhealthy:
			if comp.Critical {
				return StatusUnhealthy
			}
			hasDegraded = true
		case StatusDegraded:
			hasDegraded = true
		case StatusUnknown:
			if comp.Critical {
				hasUnknown = true
			}
		}
	}

	if hasUnknown {
		return StatusUnknown
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// Report is the response format of the health endpoint.
type Report struct {
	Status     Status                 `json:"status"`
	Components map[string]CheckResult `json:"components"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Report runs every check and aggregates the outcome.
func (c *Checker) Report(ctx context.Context) Report {
	components := c.Check(ctx)
	return Report{
		Status:     c.OverallStatus(),
		Components: components,
		Timestamp:  c.now(),
	}
}

// Handler returns an HTTP handler serving Report as JSON. Unhealthy
// and unknown states answer 503.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Report(r.Context())

		w.Header().Set("Content-Type", "application/json")
		switch report.Status {
		case StatusHealthy, StatusDegraded:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})
}

// Prober is the part of the service client a collaborator check needs.
type Prober interface {
	Health(ctx context.Context) (*service.HealthResponse, error)
}

// ServiceCheck probes the analysis collaborator. A reachable service
// reporting anything other than "ok"/"healthy" is degraded.
func ServiceCheck(p Prober, baseURL string) Check {
	return func(ctx context.Context) CheckResult {
		details := map[string]any{"base_url": baseURL}
		resp, err := p.Health(ctx)
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "analysis service unreachable",
				Details: details,
				Error:   err.Error(),
			}
		}
		details["reported"] = resp.Status
		switch strings.ToLower(resp.Status) {
		case "ok", "healthy", "up":
			return CheckResult{Status: StatusHealthy, Message: "analysis service ok", Details: details}
		default:
			return CheckResult{Status: StatusDegraded, Message: "analysis service reports " + resp.Status, Details: details}
		}
	}
}

// DatabaseCheck returns a health check for database connectivity.
func DatabaseCheck(pingFunc func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		if err := pingFunc(ctx); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "database connection failed",
				Error:   err.Error(),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "database connection ok",
		}
	}
}

// QuotaCheck reports the tracker's usage. Reaching a limit degrades the
// session since accepts are refused until the next local midnight.
func QuotaCheck(t *quota.Tracker) Check {
	return func(ctx context.Context) CheckResult {
		u := t.Usage()
		details := map[string]any{
			"tier":          string(u.Tier),
			"words_used":    u.WordsUsed,
			"accepts_used":  u.AcceptsUsed,
			"words_limit":   u.WordsLimit,
			"accepts_limit": u.AcceptsLimit,
		}
		switch {
		case u.Unlimited:
			return CheckResult{Status: StatusHealthy, Message: "unlimited tier", Details: details}
		case u.Reached:
			return CheckResult{Status: StatusDegraded, Message: "daily limit reached", Details: details}
		case u.Near:
			return CheckResult{Status: StatusHealthy, Message: "approaching daily limit", Details: details}
		default:
			return CheckResult{Status: StatusHealthy, Message: "within daily limit", Details: details}
		}
	}
}
