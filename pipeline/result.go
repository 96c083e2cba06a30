package pipeline

import (
	"fmt"

	"github.com/kbukum/shopkit/errors"
)

// ResultKind tags the active variant of a Result.
type ResultKind int

const (
	// ResultSuccess passes the response on to the next middleware.
	ResultSuccess ResultKind = iota
	// ResultFail stops the pipeline with an error.
	ResultFail
	// ResultRetry stops the chain and asks for a resubmission.
	ResultRetry
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultFail:
		return "fail"
	case ResultRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Result is what a middleware decides about a response. Exactly one of the
// response, error or policy is meaningful, according to Kind.
type Result struct {
	kind   ResultKind
	resp   *Response
	err    error
	policy RetryPolicy
}

// Success passes resp, possibly transformed, to the next middleware.
func Success(resp *Response) Result {
	return Result{kind: ResultSuccess, resp: resp}
}

// Fail stops the pipeline with err.
func Fail(err error) Result {
	if err == nil {
		err = errors.Internal(fmt.Errorf("middleware failed without an error"))
	}
	return Result{kind: ResultFail, err: err}
}

// Retry stops the chain and hands policy to the dispatcher.
func Retry(policy RetryPolicy) Result {
	return Result{kind: ResultRetry, policy: policy}
}

// Kind returns the active variant.
func (r Result) Kind() ResultKind { return r.kind }

// Response returns the response of a Success result.
func (r Result) Response() *Response { return r.resp }

// Err returns the error of a Fail result.
func (r Result) Err() error { return r.err }

// Policy returns the policy of a Retry result.
func (r Result) Policy() RetryPolicy { return r.policy }
