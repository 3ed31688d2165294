package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type credentials struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
}

func TestValidate_OK(t *testing.T) {
	assert.Nil(t, Validate(credentials{Identifier: "user@example.com", Password: "secret"}))
}

func TestValidate_UsesJSONNames(t *testing.T) {
	errs := Validate(credentials{})
	assert.Equal(t, map[string]string{
		"identifier": "required",
		"password":   "required",
	}, errs)
}

func TestValidate_MaxLength(t *testing.T) {
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	errs := Validate(credentials{Identifier: "user@example.com", Password: string(long)})
	assert.Equal(t, "max", errs["password"])
}
