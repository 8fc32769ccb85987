package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	tenantID := uint(7)
	token, err := GenerateToken("maria@example.com", 3, &tenantID, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", claims.Email)
	assert.Equal(t, uint(3), claims.UserID)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, uint(7), *claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateTokenWithoutTenant(t *testing.T) {
	token, err := GenerateToken("ops@example.com", 1, nil, "superadmin")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.TenantID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateToken("not-a-token")
	assert.Error(t, err)

	_, err = ValidateToken("")
	assert.Error(t, err)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken("maria@example.com", 3, nil, "admin")
	require.NoError(t, err)

	_, err = ValidateToken(token + "x")
	assert.Error(t, err)
}
