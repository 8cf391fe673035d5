package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore/internal/audit"
	"github.com/ridgelock-io/authcore/internal/kv"
	"github.com/ridgelock-io/authcore/internal/qr"
	"github.com/ridgelock-io/authcore/internal/rate"
	"github.com/ridgelock-io/authcore/password"
	"github.com/ridgelock-io/authcore/token"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  kv.Store

	provider  AccountProvider
	deliverer Deliverer
	auditSink AuditSink
	log       *zap.Logger

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects a transient store directly, bypassing the Redis-backed
// default. Used for in-memory deployments and tests.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

// WithAccountProvider describes the withaccountprovider operation and its observable behavior.
//
// WithAccountProvider may return an error when input validation, dependency calls, or security checks fail.
// WithAccountProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.provider = p
	return b
}

// WithDeliverer describes the withdeliverer operation and its observable behavior.
//
// WithDeliverer may return an error when input validation, dependency calls, or security checks fail.
// WithDeliverer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithDeliverer(d Deliverer) *Builder {
	b.deliverer = d
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger may return an error when input validation, dependency calls, or security checks fail.
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, errors.New("account provider required")
	}
	if b.deliverer == nil {
		return nil, errors.New("deliverer required")
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	var owned *kv.MemoryStore
	store := b.store
	if store == nil {
		if b.redis != nil {
			store = kv.NewRedisStore(b.redis, cfg.Store.OpTimeout)
		} else {
			owned = kv.NewMemoryStore(cfg.Store.MemorySweepInterval)
			store = owned
		}
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tm, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		store:      store,
		provider:   b.provider,
		deliverer:  b.deliverer,
		hasher:     ph,
		tokens:     tm,
		log:        log,
		fallback:   make(map[string]fallbackOTP),
		ownedStore: owned,
	}

	engine.limiter = rate.New(store, rate.Config{
		EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
		Actions: map[string]rate.Policy{
			actionLogin:      {MaxAttempts: cfg.RateLimit.Login.MaxAttempts, Window: cfg.RateLimit.Login.Window},
			actionOTPRequest: {MaxAttempts: cfg.RateLimit.OTPRequest.MaxAttempts, Window: cfg.RateLimit.OTPRequest.Window},
			actionOTPVerify:  {MaxAttempts: cfg.RateLimit.OTPVerify.MaxAttempts, Window: cfg.RateLimit.OTPVerify.Window},
		},
		LockoutThreshold: cfg.MFA.LockoutThreshold,
		LockoutWindow:    cfg.MFA.LockoutWindow,
	}, log)
	engine.qrSessions = qr.NewSessionStore(store, cfg.Store.Prefix+":qr")
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	if cfg.AttemptLog.SweepInterval > 0 {
		engine.startAttemptSweeper(cfg.AttemptLog.SweepInterval)
	}

	b.built = true

	return engine, nil
}
