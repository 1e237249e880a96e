package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/arkuspay/internal/models"
)

// FieldErrors maps a form field (by its JSON name) to a user-facing message.
type FieldErrors map[string]string

var (
	lettersAndSpaces = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	hasUpper         = regexp.MustCompile(`[A-Z]`)
	hasLower         = regexp.MustCompile(`[a-z]`)
	hasDigit         = regexp.MustCompile(`\d`)
)

var fieldMessages = map[string]string{
	"businessName.min":              "Business name must be at least 2 characters",
	"country.oneof":                 "Country must be US or BR",
	"firstName.min":                 "First name must be at least 2 characters",
	"firstName.alphaspace":          "First name must contain only letters",
	"lastName.min":                  "Last name must be at least 2 characters",
	"lastName.alphaspace":           "Last name must contain only letters",
	"line1.min":                     "Address must be at least 5 characters",
	"city.min":                      "City must be at least 2 characters",
	"state.required":                "State is required",
	"postalCode.required":           "Postal code is required",
	"phone.required":                "Phone number is required",
	"timezone.required":             "Timezone is required",
	"sellingMethod.oneof":           "Choose a selling method",
	"integrationTypes.integrations": "Please select at least one integration type",
	"email.required":                "Email is required",
	"email.email":                   "Enter a valid email",
	"password.min":                  "Password must be at least 8 characters",
	"password.password":             "Password must contain an uppercase letter, a lowercase letter and a digit",
	"password.required":             "Password is required",
	"confirmPassword.required":      "Please confirm your password",
	"confirmPassword.eqfield":       "Passwords do not match",
}

// FormValidator runs the onboarding and auth form rules.
type FormValidator struct {
	validate *validator.Validate
}

// NewFormValidator registers the custom rules.
func NewFormValidator() *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("alphaspace", func(fl validator.FieldLevel) bool {
		return lettersAndSpaces.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return hasUpper.MatchString(s) && hasLower.MatchString(s) && hasDigit.MatchString(s)
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		form := sl.Current().Interface().(models.SellingForm)
		if form.SellingMethod == models.SellingIntegration && len(form.IntegrationTypes) == 0 {
			sl.ReportError(form.IntegrationTypes, "integrationTypes", "IntegrationTypes", "integrations", "")
		}
	}, models.SellingForm{})

	return &FormValidator{validate: v}
}

// Validate returns nil when form passes, otherwise one message per failing field.
func (v *FormValidator) Validate(form any) FieldErrors {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"root": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		if msg, ok := fieldMessages[field+"."+fe.Tag()]; ok {
			out[field] = msg
		} else {
			out[field] = field + " is invalid"
		}
	}
	return out
}
