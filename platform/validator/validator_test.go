package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planInput struct {
	Plan string `validate:"required,plan_name"`
}

func TestRegisterOneOf(t *testing.T) {
	v := New()
	require.NoError(t, v.RegisterOneOf("plan_name", "free", "basic", "pro"))

	assert.NoError(t, v.Struct(planInput{Plan: "pro"}))

	err := v.Struct(planInput{Plan: "gold"})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"plan": "plan_name"}, FieldErrors(err))
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, FieldErrors(assert.AnError))
}
