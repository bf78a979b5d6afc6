package agent

import loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"

// Option configures optional runtime dependencies for Generator and Session.
type Option func(*agentDeps)

type agentDeps struct {
	logger  loggerpkg.Logger
	verbose bool
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger, verbose bool) Option {
	return func(d *agentDeps) {
		d.logger = l
		d.verbose = verbose
	}
}

func applyOptions(opts []Option) agentDeps {
	deps := agentDeps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	return deps
}
