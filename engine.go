package goAccess

import (
	"context"
	"strconv"
	"sync"

	"github.com/MrEthical07/goAccess/authz"
	"github.com/MrEthical07/goAccess/internal/audit"
	"github.com/MrEthical07/goAccess/internal/rate"
	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/notify"
	"github.com/MrEthical07/goAccess/otp"
	"github.com/MrEthical07/goAccess/password"
	"github.com/MrEthical07/goAccess/permission"
	"github.com/MrEthical07/goAccess/session"
	"github.com/MrEthical07/goAccess/store"
	"github.com/juju/clock"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("goaccess")

// Engine orchestrates registration, the two-step login, sessions,
// administration and JIT access. Build one with [New].
type Engine struct {
	config      Config
	clock       clock.Clock
	catalog     *permission.Catalog
	users       store.UserStore
	assignments store.AssignmentStore
	hasher      password.Hasher
	absentHash  string
	notifier    notify.Notifier
	authz       *authz.Engine
	workflow    *jit.Workflow
	codes       *otp.Manager
	sessions    *session.Store
	limiter     *rate.Limiter
	audit       *audit.Dispatcher
	metrics     *Metrics

	sweeperMu sync.Mutex
	sweeper   *jit.Sweeper
}

// Close stops the grant sweeper, if running, and flushes the audit
// dispatcher. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.StopSweeper()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Catalog returns the frozen reference data.
func (e *Engine) Catalog() *permission.Catalog {
	return e.catalog
}

// Authorizer exposes the authorization engine, for transports that gate
// routes without going through the orchestrator.
func (e *Engine) Authorizer() *authz.Engine {
	return e.authz
}

// StartSweeper starts the background revocation of expired grants. It is a
// no-op when the sweeper is already running.
func (e *Engine) StartSweeper() {
	e.sweeperMu.Lock()
	defer e.sweeperMu.Unlock()
	if e.sweeper != nil {
		return
	}
	e.sweeper = jit.NewSweeper(e.workflow, e.clock, e.observeSweep)
}

// StopSweeper stops the sweeper started by [Engine.StartSweeper] and waits
// for it to exit.
func (e *Engine) StopSweeper() {
	e.sweeperMu.Lock()
	s := e.sweeper
	e.sweeper = nil
	e.sweeperMu.Unlock()
	if s == nil {
		return
	}
	s.Kill()
	if err := s.Wait(); err != nil {
		logger.Warningf("grant sweeper exited: %v", err)
	}
}

// SweepExpiredGrants revokes every expired grant now and returns how many
// were changed.
func (e *Engine) SweepExpiredGrants(ctx context.Context) (int, error) {
	n, err := e.workflow.SweepExpired(ctx)
	e.observeSweep(n, err)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

func (e *Engine) observeSweep(n int, err error) {
	if err != nil {
		e.emitAudit(context.Background(), auditEventGrantsSwept, false, "", "", storageErr(err), nil)
		return
	}
	if n == 0 {
		return
	}
	if e.metrics != nil {
		e.metrics.Add(MetricAccessSwept, uint64(n))
	}
	e.emitAudit(context.Background(), auditEventGrantsSwept, true, "", "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
}
