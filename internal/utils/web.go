package utils

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/memberd-dev/memberd/internal/api"
	"github.com/memberd-dev/memberd/internal/errors"
	"github.com/memberd-dev/memberd/internal/logger"
)

// WriteData writes the success envelope.
func WriteData(w http.ResponseWriter, statusCode int, data interface{}) {
	writeEnvelope(w, statusCode, api.Response{Success: true, Data: data})
}

// WriteError translates err into the error envelope. Anything that is not an
// ErrorWithStatusCode is treated as an internal error and its details are
// kept out of the response.
func WriteError(w http.ResponseWriter, err error) {
	if e, ok := err.(*errors.ErrorWithStatusCode); ok {
		code := e.Code
		if code == "" {
			code = errors.CodeBadRequest
		}
		writeEnvelope(w, e.StatusCode, api.Response{Success: false, Error: &api.Error{Message: e.Message, Code: code}})
		return
	}
	logger.Log.Error("unhandled internal error", "error", err)
	writeEnvelope(w, http.StatusInternalServerError, api.Response{
		Success: false,
		Error:   &api.Error{Message: "Internal server error", Code: errors.CodeInternal},
	})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, resp api.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

func DecodeValidate(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		logger.Log.Debug("failed to decode request body", "error", err)
		return &errors.ErrorWithStatusCode{Message: "Body is invalid json", StatusCode: http.StatusBadRequest, Code: errors.CodeBadRequest}
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("request body failed validation", "error", err)
		return &errors.ErrorWithStatusCode{Message: "Required fields missing or invalid", StatusCode: http.StatusBadRequest, Code: errors.CodeBadRequest}
	}
	return nil
}

func Decode(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		logger.Log.Debug("failed to decode request body", "error", err)
		return &errors.ErrorWithStatusCode{Message: "Body is invalid json", StatusCode: http.StatusBadRequest, Code: errors.CodeBadRequest}
	}
	return nil
}
