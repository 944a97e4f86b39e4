// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code identifies an error class as a dotted path, component first and
// reason last. Classification helpers key off the final segment.
type Code string

const (
	CodeFetchTransportFailure      Code = "fetch.transport.failure"
	CodeFetchUpstreamStatusFailure Code = "fetch.upstream.status.failure"
	CodeFetchParseInvalidFormat    Code = "fetch.parse.invalid_format"
	CodeFetchRequestInvalid        Code = "fetch.request.invalid"

	CodeValidateValueImplausible  Code = "validate.value.implausible"
	CodeValidateTimestampFuture   Code = "validate.timestamp.future"
	CodeValidateMetalsIncomplete  Code = "validate.metals.incomplete"
	CodeValidateStalenessExceeded Code = "validate.staleness.exceeded"

	CodeCascadeSourcesExhausted Code = "cascade.sources.exhausted"
	CodeBreakerRequestDenied    Code = "breaker.request.denied"
	CodeBudgetExceeded          Code = "budget.quota.exceeded"

	CodeSourceNotFound          Code = "registry.source.not_found"
	CodeSourceDuplicate         Code = "registry.source.conflict"
	CodeOrderingInvalid         Code = "registry.ordering.invalid_value"
	CodeKindInvalid             Code = "market.kind.invalid_value"
	CodeConvertRateNotFound     Code = "convert.rate.not_found"
	CodeBandsParseInvalidFormat Code = "market.bands.parse.invalid_format"

	CodeStoreSnapshotLoadFailure   Code = "store.snapshot.load.failure"
	CodeStoreSnapshotWriteFailure  Code = "store.snapshot.write.failure"
	CodeStoreSnapshotInvalidFormat Code = "store.snapshot.parse.invalid_format"
	CodeStoreCounterLoadFailure    Code = "store.counter.load.failure"
	CodeStoreCounterWriteFailure   Code = "store.counter.write.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigWriteFailure         Code = "config.write.failure"
	CodeConfigFileConflict         Code = "config.file.conflict"

	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field builds an Attr from an arbitrary key.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSource(value string) Attr {
	return Field("source", value)
}

func FieldKind(value string) Attr {
	return Field("kind", value)
}

func FieldSymbol(value string) Attr {
	return Field("symbol", value)
}

func FieldCurrency(value string) Attr {
	return Field("currency", value)
}

func FieldTier(value string) Attr {
	return Field("tier", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With attaches further fields to an already coded error.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsBudgetExceeded(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "budget.")
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsFetchFailure reports whether err is one of the three per-source fetch
// failures (transport, upstream status, parse) that mean "try the next
// source" to the cascade.
func IsFetchFailure(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "fetch.")
}

// IsValidationFailure reports whether err was produced by a plausibility,
// freshness, or completeness check. Treated identically to fetch failures
// by the cascade.
func IsValidationFailure(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "validate.")
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsBudgetExceeded(err):
		return http.StatusTooManyRequests
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
