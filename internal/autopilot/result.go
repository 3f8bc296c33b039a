package autopilot

import "fmt"

const (
	ResultUnknown ResultCode = iota
	ResultSuccess
	ResultError
	ResultBusy
	ResultDenied
	ResultTimeout
	ResultInvalidArgument
	ResultUnsupported
	ResultNoSystem
	ResultNoMissionAvailable
	ResultTooManyMissionItems
	ResultTransferCancelled
)

var resultNames = [...]string{
	ResultUnknown:             "unknown",
	ResultSuccess:             "success",
	ResultError:               "error",
	ResultBusy:                "busy",
	ResultDenied:              "denied",
	ResultTimeout:             "timeout",
	ResultInvalidArgument:     "invalid argument",
	ResultUnsupported:         "unsupported",
	ResultNoSystem:            "no system",
	ResultNoMissionAvailable:  "no mission available",
	ResultTooManyMissionItems: "too many mission items",
	ResultTransferCancelled:   "transfer cancelled",
}

// ResultCode classifies the outcome of a vehicle command
type ResultCode uint8

func (c ResultCode) String() string {
	if int(c) < len(resultNames) {
		return resultNames[c]
	}
	return fmt.Sprintf("ResultCode(%d)", uint8(c))
}

// Result is the outcome of a vehicle command: either success, or a failure
// with a code and an optional reason reported by the vehicle
type Result struct {
	Code   ResultCode
	Reason string
}

// Success returns a successful result
func Success() Result {
	return Result{Code: ResultSuccess}
}

// Failure returns a failed result
func Failure(code ResultCode, reason string) Result {
	if code == ResultSuccess {
		code = ResultError
	}
	return Result{Code: code, Reason: reason}
}

// OK reports whether the command succeeded
func (r Result) OK() bool {
	return r.Code == ResultSuccess
}

func (r Result) String() string {
	if r.Reason == "" {
		return r.Code.String()
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Reason)
}
