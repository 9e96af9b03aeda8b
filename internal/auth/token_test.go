package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	s := NewSigner("secret", "ethioshop")

	raw, err := s.Issue("u-1", RoleVendor, time.Hour)
	require.NoError(t, err)

	p, err := s.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u-1", Role: RoleVendor}, p)
	assert.False(t, p.IsAdmin())
}

func TestParseRejects(t *testing.T) {
	s := NewSigner("secret", "ethioshop")

	expired, err := s.Issue("u-1", RoleCustomer, -time.Minute)
	require.NoError(t, err)
	other, err := NewSigner("other", "ethioshop").Issue("u-1", RoleCustomer, time.Hour)
	require.NoError(t, err)
	foreign, err := NewSigner("secret", "elsewhere").Issue("u-1", RoleCustomer, time.Hour)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"expired":      expired,
		"wrong secret": other,
		"wrong issuer": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Parse(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssueRequiresKnownRole(t *testing.T) {
	_, err := NewSigner("secret", "").Issue("u-1", Role("ROOT"), time.Hour)
	assert.Error(t, err)
}
