package goAccess

import (
	"errors"
	"fmt"

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
	"github.com/redis/go-redis/v9"
)

// Store is a backend that persists every durable entity. store/memory and
// store/sqlstore both satisfy it.
type Store interface {
	store.UserStore
	store.AssignmentStore
	jit.Store
}

// Builder assembles an [Engine]. Configure it once during initialization;
// Build may be called only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users       store.UserStore
	assignments store.AssignmentStore
	grants      jit.Store

	catalog   *permission.Catalog
	notifier  notify.Notifier
	auditSink AuditSink
	clock     clock.Clock
	policy    jit.Policy

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions, one-time codes and login
// throttling. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore uses s for users, role assignments and grants.
func (b *Builder) WithStore(s Store) *Builder {
	b.users = s
	b.assignments = s
	b.grants = s
	return b
}

// WithUserStore sets the user repository.
func (b *Builder) WithUserStore(s store.UserStore) *Builder {
	b.users = s
	return b
}

// WithAssignmentStore sets the role assignment repository.
func (b *Builder) WithAssignmentStore(s store.AssignmentStore) *Builder {
	b.assignments = s
	return b
}

// WithGrantStore sets the JIT grant repository.
func (b *Builder) WithGrantStore(s jit.Store) *Builder {
	b.grants = s
	return b
}

// WithCatalog replaces [permission.DefaultCatalog]. Build freezes it.
func (b *Builder) WithCatalog(c *permission.Catalog) *Builder {
	b.catalog = c
	return b
}

// WithNotifier sets the code delivery channel. Without one, codes are
// written to the log.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets where audit events go when audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock sets the time source used by every component.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// WithAccessPolicy replaces the default JIT request policy.
func (b *Builder) WithAccessPolicy(p jit.Policy) *Builder {
	b.policy = p
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the CanAccess latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, freezes the catalog and wires the
// components.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.assignments == nil {
		return nil, errors.New("assignment store required")
	}
	if b.grants == nil {
		return nil, errors.New("grant store required")
	}

	// -------- REFERENCE DATA --------
	catalog := b.catalog
	if catalog == nil {
		catalog = permission.DefaultCatalog()
	}
	catalog.Freeze()

	if name := cfg.Registration.DefaultRole; name != "" {
		role, ok := catalog.Role(name)
		if !ok {
			return nil, fmt.Errorf("Registration DefaultRole %q does not exist in catalog", name)
		}
		if role.Type != permission.Organizational {
			return nil, fmt.Errorf("Registration DefaultRole %q must be organizational", name)
		}
	}

	clk := b.clock
	if clk == nil {
		clk = clock.WallClock
	}

	// -------- PASSWORD HASHER --------
	var hasher password.Hasher
	switch cfg.Password.Algorithm {
	case PasswordBcrypt:
		h, err := password.NewBcrypt(cfg.Password.BcryptCost)
		if err != nil {
			return nil, err
		}
		hasher = h
	default:
		h, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	// verified against on unknown usernames so both login branches hash
	absentHash, err := hasher.Hash("goaccess:absent-user")
	if err != nil {
		return nil, err
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	// -------- COMPONENTS --------
	az := authz.New(catalog, b.assignments, b.grants, authz.WithClock(clk))

	jitOpts := []jit.Option{
		jit.WithClock(clk),
		jit.WithConfig(jit.Config{
			DefaultDurationMinutes: cfg.JIT.DefaultDurationMinutes,
			MaxDurationMinutes:     cfg.JIT.MaxDurationMinutes,
			SweepInterval:          cfg.JIT.SweepInterval,
		}),
	}
	if b.policy != nil {
		jitOpts = append(jitOpts, jit.WithPolicy(b.policy))
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		clock:       clk,
		catalog:     catalog,
		users:       b.users,
		assignments: b.assignments,
		hasher:      hasher,
		absentHash:  absentHash,
		notifier:    notifier,
		authz:       az,
		workflow:    jit.NewWorkflow(b.grants, az, jitOpts...),
		codes: otp.NewManager(b.redis, otp.Config{
			Length:      cfg.OneTimeCode.Length,
			TTL:         cfg.OneTimeCode.TTL,
			MaxAttempts: cfg.OneTimeCode.MaxAttempts,
		}, clk),
		sessions: session.NewStore(b.redis, session.Config{
			Timeout:        cfg.Session.Timeout,
			RetainInactive: cfg.Session.RetainInactive,
		}, clk),
		limiter: rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldown,
		}),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
