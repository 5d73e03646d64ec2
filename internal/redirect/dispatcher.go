package redirect

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/serroba/shortlink-go/internal/analytics"
	"github.com/serroba/shortlink-go/internal/messaging"
	"github.com/serroba/shortlink-go/internal/shortener"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCode is returned for codes outside the short-code charset.
	ErrInvalidCode = errors.New("invalid code")

	// ErrGone is returned for codes whose record has expired.
	ErrGone = errors.New("short url expired")
)

// RequestContext carries the per-request client attributes used for hit
// accounting.
type RequestContext struct {
	IP        string
	UserAgent string
	Referrer  string
}

// Outcome is the redirect decision: the status to respond with and the
// Location target.
type Outcome struct {
	Status   int
	Location string
}

// Metrics receives redirect outcome counts.
type Metrics interface {
	RedirectServed(status int)
}

type nopMetrics struct{}

func (nopMetrics) RedirectServed(int) {}

const sideEffectTimeout = 30 * time.Second

// Dispatcher resolves short codes into redirects and schedules hit
// accounting. All accounting is fire-and-forget: its failure can log and
// count, never surface to the client.
type Dispatcher struct {
	urls       *shortener.Service
	publishHit messaging.Publish[analytics.HitEvent]
	geo        GeoResolver
	agents     AgentParser
	metrics    Metrics
	logger     *zap.Logger

	background sync.WaitGroup
}

// NewDispatcher creates a redirect dispatcher. Nil geo, agents, or metrics
// fall back to no-op defaults.
func NewDispatcher(
	urls *shortener.Service,
	publishHit messaging.Publish[analytics.HitEvent],
	geo GeoResolver,
	agents AgentParser,
	metrics Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if geo == nil {
		geo = NoopGeoResolver{}
	}

	if agents == nil {
		agents = HeuristicAgentParser{}
	}

	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Dispatcher{
		urls:       urls,
		publishHit: publishHit,
		geo:        geo,
		agents:     agents,
		metrics:    metrics,
		logger:     logger,
	}
}

// Resolve maps a code to its redirect outcome and schedules accounting.
// Error values map onto the HTTP taxonomy: ErrInvalidCode and
// ErrInvalidRedirect are 400, shortener.ErrNotFound 404, ErrGone 410.
func (d *Dispatcher) Resolve(ctx context.Context, code string, rctx RequestContext) (*Outcome, error) {
	if !shortener.ValidCode(code) {
		return nil, ErrInvalidCode
	}

	target, err := d.urls.Resolve(ctx, shortener.Code(code))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if target.ExpiresAt != nil && !target.ExpiresAt.After(now) {
		return nil, ErrGone
	}

	if err := ValidateTarget(target.Original); err != nil {
		d.logger.Warn("redirect target rejected",
			zap.String("code", code),
			zap.String("target", target.Original),
			zap.String("severity", "security"),
			zap.Error(err),
		)

		return nil, err
	}

	status := http.StatusFound
	if PermanentHost(target.Original) {
		status = http.StatusMovedPermanently
	}

	d.scheduleAccounting(ctx, shortener.Code(code), rctx, now)
	d.metrics.RedirectServed(status)

	return &Outcome{Status: status, Location: target.Original}, nil
}

// scheduleAccounting runs the hit-count increment and event emission on a
// background task detached from the request's cancellation: an aborted
// client connection must not lose the hit.
func (d *Dispatcher) scheduleAccounting(ctx context.Context, code shortener.Code, rctx RequestContext, now time.Time) {
	detached := context.WithoutCancel(ctx)

	d.background.Add(1)

	go func() {
		defer d.background.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("panic in redirect accounting", zap.Any("panic", r))
			}
		}()

		taskCtx, cancel := context.WithTimeout(detached, sideEffectTimeout)
		defer cancel()

		d.urls.IncrementHitCount(taskCtx, code, 1)

		event := d.buildEvent(taskCtx, code, rctx, now)
		if err := d.publishHit(event); err != nil {
			d.logger.Error("failed to publish hit event",
				zap.String("code", string(code)),
				zap.Error(err),
			)
		}
	}()
}

func (d *Dispatcher) buildEvent(ctx context.Context, code shortener.Code, rctx RequestContext, now time.Time) *analytics.HitEvent {
	event := &analytics.HitEvent{
		Code:      string(code),
		Timestamp: now,
		IP:        rctx.IP,
		UserAgent: rctx.UserAgent,
		Referrer:  rctx.Referrer,
	}

	if geo, err := d.geo.Resolve(ctx, rctx.IP); err != nil {
		d.logger.Debug("geo enrichment failed", zap.String("ip", rctx.IP), zap.Error(err))
	} else if geo != nil {
		event.Country = geo.Country
		event.City = geo.City
	}

	agent := d.agents.Parse(rctx.UserAgent)
	event.DeviceType = agent.DeviceType
	event.Browser = agent.Browser
	event.OS = agent.OS

	return event
}

// Drain waits for scheduled accounting tasks to finish. Called on shutdown
// so in-flight publishes are not cut off.
func (d *Dispatcher) Drain() {
	d.background.Wait()
}
