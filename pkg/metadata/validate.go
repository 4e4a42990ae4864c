package metadata

import (
	"context"
	"reflect"
	"regexp"

	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var digitsRE = regexp.MustCompile(`^\d+$`)

var (
	conform  *mold.Transformer
	validate *validator.Validate
)

func init() {
	conform = modifiers.New()
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("sidecar")
	})
	_ = validate.RegisterValidation("digits", digitsValidator)
}

// digitsValidator allows only ASCII digit strings. Empty values are left to
// the required tag.
func digitsValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return digitsRE.MatchString(value)
}

func validateRecord(path string, r *Record) error {
	if err := conform.Struct(context.Background(), r); err != nil {
		return &ParseError{Path: path, Reason: err.Error()}
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ParseError{Path: path, Reason: err.Error()}
	}

	fe := verrs[0]
	reason := "is invalid"
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "digits":
		reason = "must be numeric"
	}
	return &ParseError{Path: path, Field: fe.Field(), Reason: reason}
}
