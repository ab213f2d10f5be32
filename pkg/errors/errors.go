// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package errors defines the error taxonomy shared across attune. Every
// error carries a dotted machine-readable code of the form
// area.subject.reason; predicates match on the reason suffix so callers
// never string-compare full codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreArtifactCorrupt         Code = "store.artifact.corrupt"
	CodeStoreArtifactIOFailure       Code = "store.artifact.io_failure"
	CodeStoreVectorDimensionMismatch Code = "store.vector.dimension_mismatch"
	CodeStoreBackendUnsupported      Code = "store.backend.unsupported"
	CodeStoreInvalidInput            Code = "store.invalid_input"
	CodeStoreItemNotFound            Code = "store.item.not_found"

	CodeEmbeddingServiceUnavailable Code = "embedding.service.unavailable"
	CodeEmbeddingResponseInvalid    Code = "embedding.response.invalid"

	CodeOracleRequestInvalid       Code = "oracle.request.invalid"
	CodeOracleRequestTimeout       Code = "oracle.request.timeout"
	CodeOracleRequestUnavailable   Code = "oracle.request.unavailable"
	CodeOracleResponseInvalid      Code = "oracle.response.invalid"
	CodeOracleResponseParseFailure Code = "oracle.response.parse_failure"
	CodeOracleBackendNotFound      Code = "oracle.registry.not_found"
	CodeOracleInvalidModelRef      Code = "oracle.registry.invalid_model_ref"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretsKeyNotFound    Code = "secrets.key.not_found"
	CodeSecretsBackendFailure Code = "secrets.backend.failure"
	CodeSecretsInvalidInput   Code = "secrets.invalid_input"

	CodeAgentLoopInvalidInput   Code = "agent.loop.invalid_input"
	CodeAgentLoopFailure        Code = "agent.loop.failure"
	CodeAgentKeywordPackInvalid Code = "agent.keyword_pack.invalid_format"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"

	CodeInternalFailure Code = "attune.internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
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

// With adds structured fields to an existing error chain, preserving the
// original code when one is present.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
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

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

// IsCorrupt reports whether err marks a mismatched persisted artifact pair.
func IsCorrupt(err error) bool {
	return reason(CodeOf(err)) == "corrupt"
}

// IsParseFailure reports whether err marks unparseable oracle output. Such
// errors are fail-soft by policy and must never abort a turn.
func IsParseFailure(err error) bool {
	return reason(CodeOf(err)) == "parse_failure"
}

func IsDimensionMismatch(err error) bool {
	return reason(CodeOf(err)) == "dimension_mismatch"
}

// Retryable reports whether err represents a transport-level failure worth
// retrying. Parse failures are excluded: they are handled fail-soft and
// retrying them spends oracle budget on non-transport faults.
func Retryable(err error) bool {
	return IsTimeout(err) || IsUnavailable(err)
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeInternalFailure).Wrap(joined)
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
