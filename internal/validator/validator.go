package validator

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// Setup registers the validator with English translations and the
// domain tags (examtype, difficulty, strongpassword) on Gin's binding engine.
// Call once during application startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}
	Register(v)
}

// Register wires tag names, translations and custom tags onto v.
func Register(v *govalidator.Validate) {
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

	_ = v.RegisterValidation("examtype", func(fl govalidator.FieldLevel) bool {
		return model.ExamType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("difficulty", func(fl govalidator.FieldLevel) bool {
		return model.Difficulty(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("strongpassword", func(fl govalidator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})

	registerMessage(v, "examtype", "{0} must be one of hiragana, katakana, vocabulary, grammar, kanji")
	registerMessage(v, "difficulty", "{0} must be one of beginner, intermediate, advanced")
	registerMessage(v, "strongpassword", "{0} must be at least 8 characters with upper-case, lower-case and a digit")
}

func registerMessage(v *govalidator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(u ut.Translator) error { return u.Add(tag, text, true) },
		func(u ut.Translator, fe govalidator.FieldError) string {
			msg, _ := u.T(tag, fe.Field())
			return msg
		},
	)
}

// StrongPassword reports whether pw has at least 8 characters, an
// upper-case letter, a lower-case letter and a digit.
func StrongPassword(pw string) bool {
	if len([]rune(pw)) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = "malformed request body"
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
