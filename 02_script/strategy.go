package script

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/synapsedaili/youtube-automation/retry"
	"github.com/synapsedaili/youtube-automation/types"
	"google.golang.org/genai"
)

// Strategy produces raw narration text for a topic.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, topic string, mode types.ModeProfile) (string, error)
}

// FirstSuccess runs candidates in order and returns the first result that
// accept approves, together with its index. When every candidate fails the
// joined errors are returned.
func FirstSuccess[T any](ctx context.Context, candidates []func(context.Context) (T, error), accept func(T) error) (T, int, error) {
	var zero T
	var errs []error
	for i, run := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := run(ctx)
		if err == nil && accept != nil {
			err = accept(v)
		}
		if err == nil {
			return v, i, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no candidates"))
	}
	return zero, -1, errors.Join(errs...)
}

// Retrying applies a retry policy to every Generate call of the wrapped strategy.
type Retrying struct {
	Strategy
	Policy retry.Policy
}

func (r Retrying) Generate(ctx context.Context, topic string, mode types.ModeProfile) (string, error) {
	var out string
	err := r.Policy.Do(ctx, func(ctx context.Context) error {
		text, err := r.Strategy.Generate(ctx, topic, mode)
		out = text
		return err
	})
	return out, err
}

// statusError is returned by the raw-HTTP strategies for non-2xx responses.
type statusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

// IsRateLimited reports whether err is a provider rate-limit response.
func IsRateLimited(err error) bool {
	return statusCode(err) == http.StatusTooManyRequests
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return gErrPtr.Code
	}
	var sErr *statusError
	if errors.As(err, &sErr) {
		return sErr.Code
	}
	return 0
}
