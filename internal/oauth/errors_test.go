package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "invalid_grant", ErrorCode(ErrInvalidGrant))
	assert.Equal(t, "invalid_grant", ErrorCode(fmt.Errorf("redeem: %w", ErrInvalidGrant)))
	assert.Equal(t, "invalid_scope", ErrorCode(&RedirectError{Err: ErrInvalidScope}))
	assert.Equal(t, "server_error", ErrorCode(errors.New("db down")))
}

func TestRedirectError_LocationKeepsQuery(t *testing.T) {
	re := &RedirectError{Err: ErrInvalidScope, RedirectURI: "https://app/cb?tenant=a", State: "x y"}
	u, err := url.Parse(re.Location())
	require.NoError(t, err)
	assert.Equal(t, "a", u.Query().Get("tenant"))
	assert.Equal(t, "invalid_scope", u.Query().Get("error"))
	assert.Equal(t, "x y", u.Query().Get("state"))
}
