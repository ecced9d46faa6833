// Package validate wraps go-playground/validator with English messages keyed
// by JSON field name.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once  sync.Once
	v     *govalidator.Validate
	trans ut.Translator
)

func setup() {
	v = govalidator.New(govalidator.WithRequiredStructEnabled())
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
}

// Struct validates s and returns field → message for every failed rule, or
// nil when s is valid.
func Struct(s any) map[string]string {
	once.Do(setup)
	if err := v.Struct(s); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// TranslateErrors maps a validation error to field → human-readable message.
// Other errors are returned under "detail".
func TranslateErrors(err error) map[string]string {
	once.Do(setup)
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}
