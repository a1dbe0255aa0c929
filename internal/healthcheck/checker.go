package healthcheck

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// A dependency the service needs, such as Redis or Postgres
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

type funcProbe struct {
	name string
	fn   func(ctx context.Context) error
}

func (p funcProbe) Name() string                    { return p.name }
func (p funcProbe) Check(ctx context.Context) error { return p.fn(ctx) }

// Wraps a ping function as a Probe
func NewProbe(name string, check func(ctx context.Context) error) Probe {
	return funcProbe{name: name, fn: check}
}

// Performs periodic health checks on the service's dependencies
type Checker struct {
	mu           sync.RWMutex
	probes       []Probe
	healthStatus map[string]*Status
	interval     time.Duration
	timeout      time.Duration
	maxFailures  int
	logger       *zap.Logger
	stopChan     chan struct{}
	running      bool
}

// Holds health checker configuration
type Config struct {
	Probes      []Probe
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Per probe timeout (default: 5s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
	Logger      *zap.Logger
}

func NewChecker(cfg Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	checker := &Checker{
		probes:       cfg.Probes,
		healthStatus: make(map[string]*Status),
		interval:     cfg.Interval,
		timeout:      cfg.Timeout,
		maxFailures:  cfg.MaxFailures,
		logger:       cfg.Logger,
		stopChan:     make(chan struct{}),
	}

	// Assume healthy until proven otherwise
	for _, p := range cfg.Probes {
		checker.healthStatus[p.Name()] = &Status{
			Target:    p.Name(),
			IsHealthy: true,
			LastCheck: time.Now(),
		}
	}

	return checker
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info("Starting health checks",
		zap.Int("probes", len(c.probes)),
		zap.Duration("interval", c.interval))

	// Run initial check immediately
	c.CheckNow()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CheckNow()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stops the health checker
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
		c.logger.Info("Health checker stopped")
	}
}

// Runs every probe once, concurrently
func (c *Checker) CheckNow() {
	var wg sync.WaitGroup

	for _, p := range c.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			c.checkProbe(p)
		}(p)
	}

	wg.Wait()
}

func (c *Checker) checkProbe(p Probe) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := p.Check(ctx); err != nil {
		c.recordFailure(p.Name(), err)
		return
	}
	c.recordSuccess(p.Name())
}

// Records a successful health check
func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[name]
	status.LastCheck = time.Now()
	status.LastSuccess = time.Now()
	status.LastError = ""
	status.FailureCount = 0

	if !status.IsHealthy {
		c.logger.Info("Dependency is now healthy", zap.String("probe", name))
		status.IsHealthy = true
	}
}

// Records a failed health check
func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[name]
	status.LastCheck = time.Now()
	status.LastFailure = time.Now()
	status.LastError = err.Error()
	status.FailureCount++

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		c.logger.Warn("Dependency is now unhealthy",
			zap.String("probe", name),
			zap.Int("failures", status.FailureCount),
			zap.Error(err))
		status.IsHealthy = false
	}
}

// Return the health status of a specific probe
func (c *Checker) GetStatus(name string) *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if status, exists := c.healthStatus[name]; exists {
		statusCopy := *status
		return &statusCopy
	}

	return nil
}

// Returns health status of all probes
func (c *Checker) GetAllStatus() map[string]*Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusMap := make(map[string]*Status)
	for name, status := range c.healthStatus {
		statusCopy := *status
		statusMap[name] = &statusCopy
	}

	return statusMap
}

// Returns the overall health status
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthyCount := 0
	for _, status := range c.healthStatus {
		if status.IsHealthy {
			healthyCount++
		}
	}

	switch {
	case healthyCount == len(c.healthStatus):
		return Healthy
	case healthyCount == 0:
		return Unhealthy
	default:
		return Degraded
	}
}
