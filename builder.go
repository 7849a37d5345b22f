package goAuthClient

import (
	"errors"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/permission"
	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
)

// Builder assembles an Engine. It is single use: Build may succeed once.
type Builder struct {
	config Config

	store     session.Store
	transport Transport
	logger    *zap.Logger
	decoder   *jwt.Decoder
	evaluator permission.Evaluator
	onLogout  LogoutHandler
	auditSink AuditSink

	permissions []string

	built bool
}

// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration, including defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Transport.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Transport.BaseURL = baseURL
	return b
}

// WithExecution sets the default ExecutionContext of built clients.
func (b *Builder) WithExecution(ec ExecutionContext) *Builder {
	b.config.Execution = ec
	return b
}

// WithTransport replaces the default *http.Client.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithSessionStore replaces the default cookie store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithDecoder sets the token decoder used by guards. The default decodes
// without verifying signatures.
func (b *Builder) WithDecoder(d *jwt.Decoder) *Builder {
	b.decoder = d
	return b
}

// WithEvaluator sets the permission evaluator used by guards.
func (b *Builder) WithEvaluator(ev permission.Evaluator) *Builder {
	b.evaluator = ev
	return b
}

// WithPermissions registers the known permission names and switches the
// default evaluator to bitmask evaluation.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

// WithLogoutHandler sets the callback run after a direct logout.
func (b *Builder) WithLogoutHandler(h LogoutHandler) *Builder {
	b.onLogout = h
	return b
}

// WithAuditSink has no effect unless Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build may return an error when the configuration is invalid, the permission
// list cannot be registered, or the builder was already used.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		transport: b.transport,
		logger:    b.logger,
		decoder:   b.decoder,
		evaluator: b.evaluator,
		onLogout:  b.onLogout,
	}

	// -------- PERMISSION REGISTRY --------
	if len(b.permissions) > 0 {
		registry, err := permission.NewRegistryFrom(b.permissions...)
		if err != nil {
			return nil, err
		}
		engine.registry = registry
	}
	if engine.evaluator == nil {
		if engine.registry != nil {
			engine.evaluator = permission.NewMaskEvaluator(engine.registry)
		} else {
			engine.evaluator = permission.EvaluatorFunc(permission.Validate)
		}
	}

	// -------- COLLABORATORS --------
	if engine.store == nil {
		engine.store = session.NewCookieStore()
	}
	if engine.transport == nil {
		engine.transport = defaultTransport(cfg.Transport)
	}
	if engine.logger == nil {
		engine.logger = zap.NewNop()
	}
	if engine.decoder == nil {
		d, err := jwt.NewDecoder(jwt.Config{SigningMethod: jwt.MethodNone})
		if err != nil {
			return nil, err
		}
		engine.decoder = d
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
