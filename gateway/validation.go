package gateway

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Registration is validated client-side before any request is sent, using the
// same rules the server enforces, so the common failures surface without a
// round-trip. The server remains authoritative.
var (
	validate        = newValidator()
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

type registration struct {
	Username string `validate:"required,min=3,max=20,username_chars"`
	Email    string `validate:"required,email"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Letters, digits and underscores only; validator's builtin alphanum
	// rejects the underscore the server allows.
	if err := v.RegisterValidation("username_chars", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateRegistration checks username, email and password against the
// server's registration rules.
func ValidateRegistration(username, email, password string) error {
	if err := validate.Struct(registration{Username: username, Email: email}); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			switch fieldErr.Field() {
			case "Username":
				return fmt.Errorf("username must be 3-20 characters of letters, digits and underscores")
			case "Email":
				return fmt.Errorf("invalid email address")
			}
		}
		return err
	}
	return ValidatePasswordStrength(password)
}

// ValidatePasswordStrength checks if a password meets the server's security
// requirements:
//   - 8 to 32 characters long
//   - Contains uppercase and lowercase letters
//   - Contains at least one number
//   - Contains at least one special character
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if len(password) > 32 {
		return fmt.Errorf("password must be at most 32 characters long")
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	if !hasSpecial {
		return fmt.Errorf("password must contain at least one special character")
	}
	return nil
}
