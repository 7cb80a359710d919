package client

import (
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	classify "github.com/ashutosh-srijan/connector-code-sample/client/internal/errors"
)

const tracerName = "github.com/ashutosh-srijan/connector-code-sample/client"

// RateLimitPlugin delays each request until limiter admits it. Waiting
// honours the request context.
func RateLimitPlugin(limiter *rate.Limiter) Plugin {
	return func(next Transport) Transport {
		if limiter == nil {
			return next
		}
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next.Do(req)
		})
	}
}

// CircuitBreakerPlugin stops sending requests while the remote endpoint keeps
// failing. Client errors such as 404 do not count against the breaker
// unless settings.IsSuccessful says otherwise. While open, requests fail
// with gobreaker.ErrOpenState.
func CircuitBreakerPlugin(settings gobreaker.Settings) Plugin {
	if settings.Name == "" {
		settings.Name = ClientName
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool {
			code := StatusCode(err)
			return err == nil || code < 500 && code >= 400 && classify.ClassifyStatus(code).Category == classify.Irrecoverable
		}
	}
	cb := gobreaker.NewCircuitBreaker(settings)
	return func(next Transport) Transport {
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			result, err := cb.Execute(func() (interface{}, error) {
				return next.Do(req)
			})
			if err != nil {
				return nil, err
			}
			return result.(*http.Response), nil
		})
	}
}

// TracingPlugin records a client span per request and propagates the trace
// context in the request headers. A nil tracer selects the global provider.
func TracingPlugin(tracer trace.Tracer) Plugin {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return func(next Transport) Transport {
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			ctx, span := tracer.Start(req.Context(), "HTTP "+req.Method,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("url.full", req.URL.String()),
				),
			)
			defer span.End()

			r := cloneRequest(req).WithContext(ctx)
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(r.Header))

			resp, err := next.Do(r)
			if code := StatusCode(err); code > 0 {
				span.SetAttributes(attribute.Int("http.response.status_code", code))
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			return resp, nil
		})
	}
}
