package observability

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ControlCollector counts run control RPCs and tracks connected snapshot
// stream clients.
type ControlCollector struct {
	RPCRequests   *prometheus.CounterVec
	RPCDurations  *prometheus.HistogramVec
	StreamClients prometheus.Gauge
}

// NewControlCollector registers the control metrics against reg, or the
// global registry when reg is nil.
func NewControlCollector(reg prometheus.Registerer) (*ControlCollector, error) {
	reg, _ = resolveRegistry(reg)

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "control_requests_total",
		Help: "Run control RPCs handled, labeled by service, method and gRPC status code.",
	}, []string{"service", "method", "code"}))
	if err != nil {
		return nil, err
	}

	// 100µs .. ~1.6s
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "control_request_duration_seconds",
		Help:    "Run control RPC latency in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"service", "method"}))
	if err != nil {
		return nil, err
	}

	clients, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_stream_clients",
		Help: "WebSocket clients currently receiving post-tick snapshots.",
	}))
	if err != nil {
		return nil, err
	}

	return &ControlCollector{RPCRequests: requests, RPCDurations: durations, StreamClients: clients}, nil
}

// UnaryServerInterceptor records one request and its latency per unary RPC,
// labeled with the status code the handler returned.
func (c *ControlCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		var fullMethod string
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observeRPC(fullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

func (c *ControlCollector) observeRPC(fullMethod, code string, d time.Duration) {
	if c == nil || c.RPCRequests == nil || c.RPCDurations == nil {
		return
	}
	service, method := SplitMethod(fullMethod)
	c.RPCRequests.WithLabelValues(service, method, code).Inc()
	c.RPCDurations.WithLabelValues(service, method).Observe(d.Seconds())
}

// SetStreamClients is the stream hub's client gauge hook.
func (c *ControlCollector) SetStreamClients(n int) {
	if c == nil || c.StreamClients == nil {
		return
	}
	c.StreamClients.Set(float64(n))
}

// SplitMethod turns "/pkg.Service/Method" into ("Service", "Method"),
// dropping the proto package. Anything it cannot split labels as
// "unknown".
func SplitMethod(fullMethod string) (service, method string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return "unknown", "unknown"
	}
	if i := strings.LastIndexByte(service, '.'); i >= 0 {
		service = service[i+1:]
	}
	if i := strings.LastIndexByte(method, '/'); i >= 0 {
		method = method[i+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
