package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

func TestToDetailsFieldErrorsUseJSONNames(t *testing.T) {
	Init()

	err := binding.Validator.ValidateStruct(&sample{Email: "nope"})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "is required", details["fullName"])
	assert.Equal(t, "must be a valid email", details["email"])
}

func TestToDetailsEmptyStringCountsAsMissing(t *testing.T) {
	Init()

	err := binding.Validator.ValidateStruct(&sample{FullName: "", Email: "a@example.com"})
	require.Error(t, err)
	assert.Equal(t, "is required", ToDetails(err)["fullName"])
}

func TestToDetailsMalformedJSON(t *testing.T) {
	var v sample
	err := json.Unmarshal([]byte(`{"fullName": 5}`), &v)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
}

func TestToDetailsNilAndOpaque(t *testing.T) {
	assert.Nil(t, ToDetails(nil))
	assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("boom")))
}
