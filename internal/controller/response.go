package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a size-limited JSON body into dst and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return appErrors.NewValidationError("invalid body: %v", err)
	}
	return validateStruct(dst)
}

// idParam returns the {id} URL parameter, which must be a UUID.
func idParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if err := validate.Var(id, "required,uuid"); err != nil {
		return "", appErrors.NewValidationError("invalid conversation id %q", id)
	}
	return id, nil
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return appErrors.NewValidationError("%s", strings.Join(msgs, "; "))
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var (
		validation   *appErrors.ValidationError
		config       *appErrors.ConfigurationError
		auth         *appErrors.AuthenticationError
		unauthorized *appErrors.UnauthorizedError
		notFound     *appErrors.NotFoundError
		transition   *appErrors.InvalidTransitionError
		provider     *appErrors.ProviderError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &config):
		return http.StatusBadRequest
	case errors.As(err, &auth):
		return http.StatusUnauthorized
	case errors.As(err, &unauthorized):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &provider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError writes {"error": ...}. Internal errors are logged and not echoed.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
