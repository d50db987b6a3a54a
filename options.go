package rescache

import "log/slog"

type (
	// Admitter decides whether a new item may be created.
	// It is consulted on every cache miss, before the factory runs.
	Admitter interface {
		AllowCreation(qualifiedName string) bool
	}
	// AdmitterFunc adapts a function to the [Admitter] interface.
	AdmitterFunc func(qualifiedName string) bool
	// Option configures a cache constructed by [New] or [NewMemoryCache].
	Option func(*settings)
	settings struct {
		logger   *slog.Logger
		admitter Admitter
	}
)

// AllowCreation calls fn.
func (fn AdmitterFunc) AllowCreation(qualifiedName string) bool { return fn(qualifiedName) }

// WithLogger sets the logger used for lifecycle events.
// Caches discard logs by default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAdmission installs an admission hook.
// Without one, every creation is allowed.
func WithAdmission(admitter Admitter) Option {
	return func(s *settings) { s.admitter = admitter }
}

func makeSettings(options []Option) settings {
	s := settings{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, apply := range options {
		apply(&s)
	}
	return s
}
