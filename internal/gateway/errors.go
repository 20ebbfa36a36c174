package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/policy"
	"github.com/soyeahso/actiongw/internal/registry"
)

var (
	ErrClientClosed = errors.New("client connection closed")
	// ErrAuthRequired is returned when a handler needs a signed-in user.
	ErrAuthRequired = fmt.Errorf("%w: handler requires an authenticated user", policy.ErrPolicyViolation)
	// ErrHandlerTimeout replaces the handler error when dispatch exceeds its deadline.
	ErrHandlerTimeout = errors.New("handler timed out")
	// ErrUnencodable marks a response that cannot be written as JSON.
	ErrUnencodable = errors.New("response is not encodable")
)

// unencodableFailure is the envelope sent in place of a payload that failed
// to marshal.
func unencodableFailure(err error) domain.Response {
	return domain.Failure(domain.CodeHandlerError, fmt.Sprintf("%v: %v", ErrUnencodable, err))
}

// RateLimitError is returned when a capability's rate policy rejects a call.
type RateLimitError struct {
	Action     domain.Action
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d calls exceeded for %s, retry in %s",
		e.Limit, e.Action, e.RetryAfter.Round(time.Second))
}

// failureFor maps an error from any stage of the pipeline onto the
// failure envelope. This is the only place error codes are chosen.
func failureFor(err error) domain.Response {
	var (
		ve *domain.ValidationError
		re *RateLimitError
		he *registry.HandlerError
	)
	switch {
	case errors.As(err, &ve):
		return domain.Failure(domain.CodeValidationFailed, ve.Error())
	case errors.As(err, &re):
		resp := domain.Failure(domain.CodeRateLimited, re.Error())
		resp.RetryAfterMs = re.RetryAfter.Milliseconds()
		if resp.RetryAfterMs < 1 {
			resp.RetryAfterMs = 1
		}
		return resp
	case errors.Is(err, policy.ErrPolicyViolation), errors.Is(err, normalize.ErrUnknownAction):
		return domain.Failure(domain.CodePolicyViolation, err.Error())
	case errors.Is(err, registry.ErrHandlerNotFound):
		return domain.Failure(domain.CodeNotFound, err.Error())
	case errors.As(err, &he):
		return domain.Failure(domain.CodeHandlerError, he.Err.Error())
	default:
		return domain.Failure(domain.CodeHandlerError, err.Error())
	}
}

// HTTPStatus returns the HTTP status for an envelope.
func HTTPStatus(resp domain.Response) int {
	if resp.OK {
		return http.StatusOK
	}
	switch resp.Code {
	case domain.CodeValidationFailed:
		return http.StatusBadRequest
	case domain.CodePolicyViolation:
		return http.StatusForbidden
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeHandlerError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
