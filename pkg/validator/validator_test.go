package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=8"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := registerPayload{Name: "Alice", Email: "alice@example.com", Password: "longenough"}
	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(registerPayload{Email: "invalid", Password: "short"})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "email", fields["email"])
	require.Equal(t, "required", fields["name"])
	require.Equal(t, "min", fields["password"])
}

func TestDigitsRule(t *testing.T) {
	type payload struct {
		Code string `json:"code" validate:"digits=6"`
	}

	require.NoError(t, ValidateStruct(payload{Code: "482913"}))
	require.Error(t, ValidateStruct(payload{Code: "48291"}))
	require.Error(t, ValidateStruct(payload{Code: "48a913"}))
	require.Error(t, ValidateStruct(payload{Code: ""}))
}

func TestFingerprintRule(t *testing.T) {
	type payload struct {
		Fingerprint string `json:"fingerprint" validate:"fingerprint"`
	}

	require.NoError(t, ValidateStruct(payload{Fingerprint: "fp-7c1e9a42b0"}))
	require.Error(t, ValidateStruct(payload{Fingerprint: "short"}))
	require.Error(t, ValidateStruct(payload{Fingerprint: "has space inside"}))
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("awards", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "awards"
	})
	require.NoError(t, err)

	type custom struct {
		Value string `validate:"awards"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "awards"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}
