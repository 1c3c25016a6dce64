package awsops

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/viant/opsgate/service/gateway"
	"github.com/viant/opsgate/service/retrier"
)

// authCodes are AWS error codes that must never be retried.
var authCodes = map[string]bool{
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"UnauthorizedOperation":       true,
	"UnrecognizedClientException": true,
	"InvalidClientTokenId":        true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"AuthFailure":                 true,
	"MissingAuthenticationToken":  true,
	"SignatureDoesNotMatch":       true,
}

// transientCodes are protocol-level codes worth another attempt, including
// rate-limit responses embedded in otherwise-delivered replies.
var transientCodes = map[string]bool{
	"ThrottlingException":         true,
	"Throttling":                  true,
	"TooManyRequestsException":    true,
	"RequestLimitExceeded":        true,
	"RequestThrottled":            true,
	"RequestThrottledException":   true,
	"ServiceUnavailable":          true,
	"ServiceUnavailableException": true,
	"InternalServerError":         true,
	"InternalFailure":             true,
	"RequestTimeout":              true,
	"RequestTimeoutException":     true,
}

// Classify maps AWS call failures to a retry disposition. Result-not-ready
// signals are non-retryable here; the tracker tolerates them at its normal
// cadence instead.
func Classify(err error) retrier.Class {
	if err == nil {
		return retrier.NonRetryable
	}
	if errors.Is(err, gateway.ErrResultNotReady) {
		return retrier.NonRetryable
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case authCodes[code]:
			return retrier.Auth
		case transientCodes[code]:
			return retrier.Retryable
		}
	}
	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		return retrier.ClassifyStatus(httpErr.HTTPStatusCode())
	}
	return retrier.DefaultClassifier(err)
}
