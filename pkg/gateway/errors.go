package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/ganymede/pkg/stream"
	"mercator-hq/ganymede/pkg/wire"
)

// writeError sends one wire error envelope with its mapped status.
func writeError(w http.ResponseWriter, resp *wire.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Error.HTTPStatusCode())
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Default().Error("writing error response failed", "error", err)
	}
}

func errMissingBearer() *wire.ErrorResponse {
	return wire.NewErrorResponse("missing bearer token", wire.ErrorTypeAuthentication, "", wire.CodeMissingField)
}

func errInvalidBearer() *wire.ErrorResponse {
	return wire.NewErrorResponse("invalid bearer token", wire.ErrorTypeAuthentication, "", wire.CodeInvalidValue)
}

func errUserBanned(until time.Time) *wire.ErrorResponse {
	return wire.NewErrorResponse(
		fmt.Sprintf("user is banned until %s", until.UTC().Format(time.RFC3339)),
		wire.ErrorTypePermissionDenied, "", wire.CodeUserBanned)
}

func errInvalidJSON(err error) *wire.ErrorResponse {
	return wire.NewErrorResponse("request body is not valid JSON: "+err.Error(),
		wire.ErrorTypeInvalidRequest, "", wire.CodeInvalidJSON)
}

func errInvalidField(fe *wire.FieldError) *wire.ErrorResponse {
	return wire.NewErrorResponse(fe.Message, wire.ErrorTypeInvalidRequest, fe.Field, wire.CodeInvalidValue)
}

func errModelNotSupported(model string) *wire.ErrorResponse {
	return wire.NewErrorResponse(fmt.Sprintf("model %q is not supported", model),
		wire.ErrorTypeInvalidRequest, "model", wire.CodeModelNotFound)
}

func errNoCredentials() *wire.ErrorResponse {
	return wire.NewErrorResponse("no credentials available",
		wire.ErrorTypeServiceUnavailable, "", wire.CodeNoCredentials)
}

func errUpstreamFailure(err error) *wire.ErrorResponse {
	return wire.NewErrorResponse("upstream request failed: "+err.Error(),
		wire.ErrorTypeServerError, "", wire.CodeUpstreamError)
}

func errEmptyCompletion() *wire.ErrorResponse {
	return wire.NewErrorResponse("upstream returned an empty completion",
		wire.ErrorTypeServerError, "", wire.CodeEmptyCompletion)
}

// internalError logs the underlying failure and returns a fixed
// envelope. Driver and SQL detail stays in the server log; the caller
// only sees the generic message.
func (g *Gateway) internalError(err error) *wire.ErrorResponse {
	g.logger.Error("internal error", "error", err)
	return wire.NewErrorResponse("internal server error",
		wire.ErrorTypeServerError, "", wire.CodeInternalError)
}

// errUpstreamChat converts a structured upstream error into the wire
// envelope, before any response bytes are committed.
func errUpstreamChat(ce stream.ChatError) *wire.ErrorResponse {
	return wire.NewErrorResponse(ce.Message, wire.ErrorTypeServerError, "", ce.Code)
}
