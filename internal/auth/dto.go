package auth

import (
	"strings"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/core/common/validation"
)

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refreshToken"`
}

func (d LoginDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("email", strings.TrimSpace(d.Email)).
		Required().
		MaxLength(255)
	validator.Field("password", d.Password).
		Required().
		MaxLength(72)
	return validator.Validate()
}

func (d RefreshTokenDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("refreshToken", d.RefreshToken).Required()
	return validator.Validate()
}
