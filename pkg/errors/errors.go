// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeMemoryLearningNotFound     Code = "memory.learning.get.not_found"
	CodeMemoryDeleteFilterInvalid  Code = "memory.delete.filter.invalid_input"
	CodeMemoryLearningInputInvalid Code = "memory.learning.create.invalid_input"
	CodeMemorySecretNotFound       Code = "memory.secret.get.not_found"

	CodeStateRunNotFound      Code = "state.run.get.not_found"
	CodeStateRevisionConflict Code = "state.revision.write.conflict"
	CodeStatePayloadInvalid   Code = "state.payload.parse.invalid_input"

	// Storage error family. The resilience layer classifies raw driver
	// errors into exactly one of these four codes.
	CodeStorageConstraintViolation Code = "storage.constraint.violation"
	CodeStorageDataInvalid         Code = "storage.data.invalid_input"
	CodeStorageTransientBusy       Code = "storage.transient.busy"
	CodeStorageUnavailable         Code = "storage.backend.unavailable"
	CodeStorageBackendUnsupported  Code = "storage.backend.unsupported"

	CodeEmbedderFailure     Code = "embedder.embed.failure"
	CodeEmbedderDimMismatch Code = "embedder.embed.invalid_value"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIInputInvalid   Code = "cli.input.invalid"
	CodeCLIRequestFailure Code = "cli.request.failure"
	CodeCLISetupFailure   Code = "cli.setup.failure"
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

func FieldLearningID(value string) Attr {
	return Field("learning_id", value)
}

func FieldRunID(value string) Attr {
	return Field("run_id", value)
}

func FieldScope(value string) Attr {
	return Field("scope", value)
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

// With adds structured fields to an existing error chain.
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

// IsRetryable reports whether the error is a transient storage condition
// that the resilience layer may retry.
func IsRetryable(err error) bool {
	return reason(CodeOf(err)) == "busy"
}

// IsConstraint reports whether the error is a storage constraint violation.
// Constraint violations surface immediately and are never retried.
func IsConstraint(err error) bool {
	return reason(CodeOf(err)) == "violation"
}

// IsUnavailable reports whether the error is a storage availability failure,
// including retry exhaustion.
func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

// IsEmbedderFailure reports whether the error originated in the embedding
// capability. Read paths swallow these; write paths surface them.
func IsEmbedderFailure(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "embedder.")
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err), IsConstraint(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
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
