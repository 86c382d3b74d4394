package user

import (
	"strings"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/core/common/validation"
)

// CreateUserDTO is used by the seed command; there is no public sign-up endpoint.
type CreateUserDTO struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	PixKey   string `json:"pixKey,omitempty"`
}

func (d *CreateUserDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Name = strings.TrimSpace(d.Name)
	d.PixKey = strings.TrimSpace(d.PixKey)
}

func (d CreateUserDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("email", d.Email).
		Required().
		MaxLength(255).
		Custom(func(v interface{}) *errors.AppError {
			email := v.(string)
			at := strings.IndexByte(email, '@')
			if at <= 0 || at == len(email)-1 {
				return errors.NewValidationFieldError("email", "email is invalid", errors.ErrCodeValidationFailed)
			}
			return nil
		})
	validator.Field("name", d.Name).
		Required().
		MaxLength(100)
	validator.Field("password", d.Password).
		Required().
		MinLength(8).
		MaxLength(72)
	validator.Field("pixKey", d.PixKey).
		MaxLength(140)
	return validator.Validate()
}
