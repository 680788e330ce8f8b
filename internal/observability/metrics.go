// Package observability exposes simulator metrics in Prometheus format: trigger
// outcomes, scheduled action lifecycle, dropped events and RPC traffic.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/oshokin/tourist-safety/internal/events"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

const namespace = "safety"

// Outcome label of applied triggers.
const outcomeApplied = "applied"

// Collector bundles the simulator metrics. It implements machine.Recorder and
// scheduler.Observer. A nil Collector records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Triggers        *prometheus.CounterVec
	ActionsQueued   *prometheus.CounterVec
	ActionsFired    *prometheus.CounterVec
	ActionsCanceled *prometheus.CounterVec
	ActionLateness  *prometheus.HistogramVec
	PendingActions  prometheus.Gauge
	EventsDropped   *prometheus.CounterVec

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice on one registry reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}

	var err error

	if c.Triggers, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "triggers_total",
		Help:      "Triggers offered to scenario machines, labeled by scenario, trigger and outcome.",
	}, []string{"scenario", "trigger", "outcome"})); err != nil {
		return nil, err
	}

	if c.ActionsQueued, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_actions_total",
		Help:      "Actions put on the scheduler queue, labeled by scenario and kind.",
	}, []string{"scenario", "kind"})); err != nil {
		return nil, err
	}

	if c.ActionsFired, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fired_actions_total",
		Help:      "Scheduled actions that fired, labeled by scenario and kind.",
	}, []string{"scenario", "kind"})); err != nil {
		return nil, err
	}

	if c.ActionsCanceled, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cancelled_actions_total",
		Help:      "Scheduled actions cancelled before firing, labeled by scenario and kind.",
	}, []string{"scenario", "kind"})); err != nil {
		return nil, err
	}

	if c.ActionLateness, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "action_lateness_seconds",
		Help:      "Delay between an action's due time and its invocation.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"kind"})); err != nil {
		return nil, err
	}

	if c.PendingActions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_actions",
		Help:      "Actions currently waiting on the scheduler queue.",
	})); err != nil {
		return nil, err
	}

	if c.EventsDropped, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events a slow subscriber could not take, labeled by scenario.",
	}, []string{"scenario"})); err != nil {
		return nil, err
	}

	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "Handled RPCs, labeled by service, method and gRPC status code.",
	}, []string{"service", "method", "code"})); err != nil {
		return nil, err
	}

	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "RPC latency in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
	}, []string{"service", "method"})); err != nil {
		return nil, err
	}

	return c, nil
}

// TriggerApplied implements machine.Recorder.
func (c *Collector) TriggerApplied(machine, trigger, _ string) {
	if c == nil {
		return
	}

	c.Triggers.WithLabelValues(machine, trigger, outcomeApplied).Inc()
}

// TriggerIgnored implements machine.Recorder.
func (c *Collector) TriggerIgnored(machine, trigger, reason string) {
	if c == nil {
		return
	}

	c.Triggers.WithLabelValues(machine, trigger, reason).Inc()
}

// Scheduled implements scheduler.Observer.
func (c *Collector) Scheduled(owner scheduler.Owner, label string) {
	if c == nil {
		return
	}

	c.ActionsQueued.WithLabelValues(ScenarioOf(owner), KindOf(label)).Inc()
	c.PendingActions.Inc()
}

// Fired implements scheduler.Observer.
func (c *Collector) Fired(owner scheduler.Owner, label string, lateness time.Duration) {
	if c == nil {
		return
	}

	kind := KindOf(label)

	c.ActionsFired.WithLabelValues(ScenarioOf(owner), kind).Inc()
	c.ActionLateness.WithLabelValues(kind).Observe(max(lateness, 0).Seconds())
	c.PendingActions.Dec()
}

// Cancelled implements scheduler.Observer.
func (c *Collector) Cancelled(owner scheduler.Owner, label string) {
	if c == nil {
		return
	}

	c.ActionsCanceled.WithLabelValues(ScenarioOf(owner), KindOf(label)).Inc()
	c.PendingActions.Dec()
}

// EventDropped counts an event lost to backpressure. It fits events.WithDropHandler.
func (c *Collector) EventDropped(e events.Event) {
	if c == nil {
		return
	}

	c.EventsDropped.WithLabelValues(e.ScenarioName()).Inc()
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}

		c.observeRPC(fullMethod, err, time.Since(start))

		return resp, err
	}
}

// StreamServerInterceptor records request counts and durations for streaming RPCs.
func (c *Collector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}

		c.observeRPC(fullMethod, err, time.Since(start))

		return err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}

	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) observeRPC(fullMethod string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}

	service, method := SplitMethod(fullMethod)

	c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
	c.RPCDurations.WithLabelValues(service, method).Observe(elapsed.Seconds())
}

// ScenarioOf returns the scenario part of an owner tag such as "geofence/<id>#2".
func ScenarioOf(owner scheduler.Owner) string {
	name, _, _ := strings.Cut(string(owner), "/")
	if name == "" {
		return "unknown"
	}

	return name
}

// KindOf returns the kind part of an action label such as "notify:ledger".
func KindOf(label string) string {
	kind, _, _ := strings.Cut(label, ":")
	if kind == "" {
		return "unknown"
	}

	return kind
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components, returning "unknown" for parts it cannot find.
func SplitMethod(fullMethod string) (string, string) {
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}

	service, method := parts[len(parts)-2], parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}

	if service == "" {
		service = "unknown"
	}

	if method == "" {
		method = "unknown"
	}

	return service, method
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return collector, fmt.Errorf("register collector: %w", err)
	}

	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return collector, fmt.Errorf("collector already registered with incompatible type: %w", err)
	}

	return existing, nil
}
