// Package validate provides struct-tag validation shared by every
// configuration value in the simulator (the genesis parameters). It
// follows the `business/sys/validate` helper common across
// ardanlabs services: a package-level validator plus an English
// translator so field errors read as sentences instead of tag dumps.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
}

// FieldError represents a single named field that failed validation.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// FieldErrors is a collection of FieldError values that satisfies the
// error interface.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	var msgs []string
	for _, f := range fe {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Error))
	}
	return strings.Join(msgs, "; ")
}

// Check validates the provided model against its `validate` struct tags.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			field := FieldError{
				Field: verror.Field(),
				Error: verror.Translate(translator),
			}
			fields = append(fields, field)
		}

		return fields
	}

	return nil
}
