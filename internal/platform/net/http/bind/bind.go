// Package bind decodes and validates request bodies
package bind

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ValidatorSvc is the shared validator and its english translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc

	eventName = regexp.MustCompile(`^[a-z0-9][a-z0-9_.:-]*$`)
	fieldKey  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Get returns the validator, building it on first use
func Get() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		trans, _ := ut.New(enLoc, enLoc).GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		short(v, trans, "min", "{0} must be at least {1}")
		short(v, trans, "max", "{0} must be at most {1}")

		register(v, trans, "event_name", "{0} must be a lowercase event name", func(fl validator.FieldLevel) bool {
			return eventName.MatchString(fl.Field().String())
		})
		register(v, trans, "field_key", "{0} must be a lowercase field key", func(fl validator.FieldLevel) bool {
			return fieldKey.MatchString(fl.Field().String())
		})

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Options controls ParseJSON
type Options struct {
	MaxBytes       int64 // default 1MB
	AllowUnknown   bool
	AllowEmptyBody bool
}

// ParseJSON decodes one JSON value into T and validates it
// decode failures are ErrorCodeJSON; tag failures are ErrorCodeValidation naming the field
func ParseJSON[T any](r *http.Request, opts ...Options) (T, error) {
	var zero T
	o := Options{MaxBytes: 1 << 20}
	if len(opts) > 0 {
		o = opts[0]
		if o.MaxBytes == 0 {
			o.MaxBytes = 1 << 20
		}
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.C(r.Context()).Error().Err(err).Msg("close request body")
		}
	}()

	br := bufio.NewReader(io.LimitReader(r.Body, o.MaxBytes))
	if _, err := br.Peek(1); err != nil {
		if o.AllowEmptyBody {
			return zero, nil
		}
		return zero, perr.JSONErrf("empty body")
	}

	dec := json.NewDecoder(br)
	if !o.AllowUnknown {
		dec.DisallowUnknownFields()
	}
	var dst T
	if err := dec.Decode(&dst); err != nil {
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Struct(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// Struct validates v against its tags
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Get().Error().Err(inv).Msg("validator misuse")
		return perr.Wrap(inv, perr.ErrorCodeUnknown, "validation error")
	}
	field, msg := FieldAndMessage(err)
	return perr.Validationf(field, "%s", msg)
}

// FieldAndMessage returns the first failing field and its translated message
func FieldAndMessage(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field(), verrs[0].Translate(Get().Translator)
	}
	if err == nil {
		return "", ""
	}
	return "", err.Error()
}

func short(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

func register(v *validator.Validate, trans ut.Translator, tag, text string, fn validator.Func) {
	_ = v.RegisterValidation(tag, fn)
	short(v, trans, tag, text)
}
