package syncerr

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Categories of the save pipeline failures.
const (
	CategoryNetwork   = goerrors.Category("sync_network")
	CategoryRejected  = goerrors.Category("sync_rejected")
	CategoryMalformed = goerrors.Category("sync_malformed_response")
	CategoryGuard     = goerrors.Category("sync_guard_conflict")
)

const (
	textCodeNetwork   = "SYNC_NETWORK_FAILURE"
	textCodeRejected  = "SYNC_SERVER_REJECTED"
	textCodeMalformed = "SYNC_MALFORMED_RESPONSE"
	textCodeGuard     = "SYNC_GUARD_CONFLICT"
)

// NetworkFailure wraps a transport error: the request never produced an HTTP
// response (connection refused, timeout, cancelled context).
func NetworkFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, CategoryNetwork, describe(op, "network failure")).
		WithTextCode(textCodeNetwork)
}

// ServerRejection reports a non-2xx response or a response whose envelope
// carries success=false. status is the HTTP status code, reason the error
// string decoded from the body.
func ServerRejection(op string, status int, reason string) error {
	message := describe(op, fmt.Sprintf("server rejected request (status %d)", status))
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		message += ": " + trimmed
	}
	return goerrors.New(message, CategoryRejected).
		WithCode(status).
		WithTextCode(textCodeRejected)
}

// MalformedResponse reports a 2xx response whose body could not be decoded.
func MalformedResponse(err error, op string) error {
	if err == nil {
		err = errors.New("empty response body")
	}
	return goerrors.Wrap(err, CategoryMalformed, describe(op, "malformed response")).
		WithTextCode(textCodeMalformed)
}

// GuardConflict reports a suppressed duplicate save. It is part of the
// scheduling mechanism and is never shown to users.
func GuardConflict(op string) error {
	return goerrors.New(describe(op, "save already in flight"), CategoryGuard).
		WithTextCode(textCodeGuard)
}

// IsNetworkFailure reports whether err is a NetworkFailure.
func IsNetworkFailure(err error) bool {
	return goerrors.IsCategory(err, CategoryNetwork)
}

// IsServerRejection reports whether err is a ServerRejection.
func IsServerRejection(err error) bool {
	return goerrors.IsCategory(err, CategoryRejected)
}

// IsMalformedResponse reports whether err is a MalformedResponse.
func IsMalformedResponse(err error) bool {
	return goerrors.IsCategory(err, CategoryMalformed)
}

// IsGuardConflict reports whether err is a GuardConflict.
func IsGuardConflict(err error) bool {
	return goerrors.IsCategory(err, CategoryGuard)
}

// Recoverable reports whether the user can retry after err with the draft and
// dirty flag intact.
func Recoverable(err error) bool {
	return IsNetworkFailure(err) || IsServerRejection(err)
}

// Status extracts the HTTP status carried by a ServerRejection, or 0.
func Status(err error) int {
	var target *goerrors.Error
	if errors.As(err, &target) && target.Category == CategoryRejected {
		return target.Code
	}
	return 0
}

func describe(op, message string) string {
	if trimmed := strings.TrimSpace(op); trimmed != "" {
		return "sync: " + trimmed + ": " + message
	}
	return "sync: " + message
}
