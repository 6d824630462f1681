package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,email"`
	Tier     string `json:"tier" validate:"omitempty,oneof=free standard ultimate"`
}

type paymentRequest struct {
	CardNumber string `json:"card_number" validate:"required,cardnumber"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(&signupRequest{Username: "ana.p+1", Email: "ana@example.com", Tier: "standard"})
	assert.NoError(t, err)
}

func TestValidate_FieldsUseJSONNames(t *testing.T) {
	err := Validate(&signupRequest{Username: "bad name!", Email: "nope", Tier: "gold"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := verr.Fields()
	assert.Equal(t, "may only contain letters, digits and @/./+/-/_", fields["username"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be one of: free standard ultimate", fields["tier"])
	assert.Contains(t, verr.Error(), "field 'email'")
}

func TestValidate_CardNumber(t *testing.T) {
	assert.NoError(t, Validate(&paymentRequest{CardNumber: "4242 4242 4242 4242"}))
	assert.NoError(t, Validate(&paymentRequest{CardNumber: "4242-4242-4242-4242"}))
	assert.Error(t, Validate(&paymentRequest{CardNumber: "4242"}))
	assert.Error(t, Validate(&paymentRequest{CardNumber: "4242abcd42424242"}))
}

func TestIsCardNumber(t *testing.T) {
	assert.True(t, IsCardNumber("4000 0000 0000 0002"))
	assert.True(t, IsCardNumber("4222222222222"))
	assert.False(t, IsCardNumber("42222222222"))
	assert.False(t, IsCardNumber("12345678901234567890"))
}

func TestNormalizeCardNumber(t *testing.T) {
	assert.Equal(t, "4111111111111111", NormalizeCardNumber("4111-1111 1111-1111"))
}

func TestDecodeAndValidate(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"ana","email":"ana@example.com"}`))
	var req signupRequest
	require.NoError(t, DecodeAndValidate(r, &req))
	assert.Equal(t, "ana", req.Username)
}

func TestDecodeAndValidate_UnknownField(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"ana","email":"ana@example.com","admin":true}`))
	var req signupRequest
	err := DecodeAndValidate(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_Malformed(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
	var req signupRequest
	assert.Error(t, DecodeAndValidate(r, &req))
}
