// Package v1handler implements the JSON endpoints of the public API: exposure
// scans, the feedback form and its challenge, and the health check.
package v1handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"exposureshield/internal/config"
	"exposureshield/internal/exposure"
	"exposureshield/internal/feedback"
	"exposureshield/internal/ratelimit"
	"exposureshield/pkg/serrors"
	"exposureshield/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Deps are the collaborators of the handler.
type Deps struct {
	Exposure exposure.Aggregator
	Feedback feedback.Service
	Limiter  *ratelimit.Limiter
	// ScanLogs receives one row per evaluation. Nil disables scan logs.
	ScanLogs storage.ScanLogStorage
}

// Options configure request handling.
type Options struct {
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
	// ScanLogSecret keys the HMAC that replaces addresses in scan logs.
	ScanLogSecret []byte
	// StorageBackend is reported by the health check.
	StorageBackend string
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		ScanLogSecret:  []byte(cfg.ScanLog.HashSecret),
		StorageBackend: cfg.Storage.Backend,
	}
}

type Handler struct {
	deps     Deps
	options  Options
	validate *validator.Validate
}

func New(deps Deps, options Options) *Handler {
	if options.MaxBodyBytes <= 0 {
		options.MaxBodyBytes = 64 << 10
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return &Handler{
		deps:     deps,
		options:  options,
		validate: validate,
	}
}

// Register mounts the v1 routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/scan", h.Scan)
	r.Get("/feedback/captcha", h.Captcha)
	r.Post("/feedback", h.SubmitFeedback)
}

// formDecodable is implemented by requests that may also be posted as an
// HTML form.
type formDecodable interface {
	decodeForm(form url.Values)
}

// decode reads a body of at most MaxBodyBytes into dst and validates it. The
// body is JSON unless dst accepts forms and the request is form encoded.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.options.MaxBodyBytes)

	if fd, ok := dst.(formDecodable); ok {
		if form, isForm, err := h.readForm(r); isForm {
			if err != nil {
				return err
			}
			fd.decodeForm(form)

			return h.validateStruct(dst)
		}
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return serrors.Wrap(serrors.ErrBadRequest, err, "request body is too large")
		}

		return serrors.Wrap(serrors.ErrBadRequest, err, "request body is not valid JSON")
	}

	return h.validateStruct(dst)
}

// readForm parses url-encoded and multipart bodies. isForm is false for any
// other content type.
func (h *Handler) readForm(r *http.Request) (form url.Values, isForm bool, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		err = r.ParseForm()
	case "multipart/form-data":
		err = r.ParseMultipartForm(h.options.MaxBodyBytes)
	default:
		return nil, false, nil
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, true, serrors.Wrap(serrors.ErrBadRequest, err, "request body is too large")
		}

		return nil, true, serrors.Wrap(serrors.ErrBadRequest, err, "request body is not a valid form")
	}

	return r.PostForm, true, nil
}

func (h *Handler) validateStruct(dst any) error {
	if err := h.validate.Struct(dst); err != nil {
		return serrors.Wrap(serrors.ErrBadRequest, err, "%s", validationMessage(err))
	}

	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	field := verrs[0]
	switch field.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field.Field())
	case "email":
		return fmt.Sprintf("%s is not a valid email address", field.Field())
	case "max":
		return fmt.Sprintf("%s is too long", field.Field())
	}

	return fmt.Sprintf("%s is invalid", field.Field())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
