package client

import (
	"errors"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	classify "github.com/ashutosh-srijan/connector-code-sample/client/internal/errors"
)

// retryPlugin re-sends requests that failed for a recoverable reason
// (network errors, 408, 429 and most 5xx), waiting between attempts with the
// exponential policy described by cfg. Requests whose body cannot be
// replayed are attempted once.
func retryPlugin(cfg RetryPluginConfig) Plugin {
	return func(next Transport) Transport {
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			policy := backoff.WithContext(cfg.newBackOff(), req.Context())

			var resp *http.Response
			attempt := 0
			op := func() error {
				r := req
				if attempt > 0 {
					var err error
					if r, err = rewind(req); err != nil {
						return backoff.Permanent(err)
					}
				}
				attempt++

				res, err := next.Do(r)
				if err == nil {
					resp = res
					return nil
				}
				if !retryable(err) || !replayable(req) {
					return backoff.Permanent(err)
				}
				return err
			}
			if err := backoff.Retry(op, policy); err != nil {
				return nil, err
			}
			return resp, nil
		})
	}
}

func retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		if te.StatusCode > 0 {
			return classify.ClassifyStatus(te.StatusCode).Retryable()
		}
		if te.Err != nil {
			err = te.Err
		}
	}
	return classify.ClassifyNetwork(err).Retryable()
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rewind returns a copy of req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}
