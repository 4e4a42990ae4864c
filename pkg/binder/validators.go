package binder

import (
	"path"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var digitsRE = regexp.MustCompile(`^\d+$`)

// digitsValidator allows ASCII digit strings, or the empty string so that
// optional ids can use it without `required`.
func digitsValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return digitsRE.MatchString(value)
}

// relPathValidator allows forward-slash paths that stay inside whatever root
// they're joined onto.
func relPathValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	if strings.HasPrefix(value, "/") || strings.Contains(value, `\`) {
		return false
	}
	cleaned := path.Clean(value)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
