// Package notify delivers "new version detected" events to external sinks.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/user/hcaptcha-monitor/internal/domain"
)

// Notifier delivers a release notification.
type Notifier interface {
	Notify(ctx context.Context, release domain.Release) error
}

// Router fans a release out to all configured sinks. One sink failing does
// not stop delivery to the others; all errors are joined and returned.
type Router struct {
	sinks  []Notifier
	logger *zap.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *zap.Logger, sinks ...Notifier) *Router {
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Notify(ctx context.Context, release domain.Release) error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Notify(ctx, release); err != nil {
			r.logger.Warn("notify: sink failed", zap.String("host", release.Target.Host), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
