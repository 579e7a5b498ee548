// Package metrics defines the sign-in metrics emitted to a statsd.Sink.
package metrics

import (
	"time"

	obserrors "github.com/commandcenter/inboxauth/internal/observability/errors"
	"github.com/commandcenter/inboxauth/internal/observability/statsd"
)

// Result tags.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metric names.
const (
	CallbackCount    = "auth.callback"
	CallbackDuration = "auth.callback.duration"
	IdentityFallback = "auth.identity.fallback"
	SessionValidate  = "auth.session.validate"
)

// CallbackMetric describes one completed or failed provider callback.
type CallbackMetric struct {
	Flow     string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitCallback records a callback outcome and, when known, its latency.
func EmitCallback(sink statsd.Sink, in CallbackMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"flow": in.Flow, "result": in.Result}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count(CallbackCount, 1, tags)
	if in.Duration > 0 {
		sink.Timing(CallbackDuration, in.Duration, CloneTags(tags))
	}
}

// EmitIdentityFallback records that a sign-in proceeded with the placeholder identity.
func EmitIdentityFallback(sink statsd.Sink, flow string) {
	if sink == nil {
		return
	}
	sink.Count(IdentityFallback, 1, map[string]string{"flow": flow})
}

// EmitSessionValidate records a session check. result is "success" or the error class.
func EmitSessionValidate(sink statsd.Sink, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = obserrors.Classify(err)
	}
	sink.Count(SessionValidate, 1, map[string]string{"result": result})
}

// CloneTags returns a shallow copy of src, or nil when src is empty.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
