package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func Test_DeriveClientID_is_deterministic(t *testing.T) {
	req := require.New(t)
	token := []byte(domain.NewToken())

	// The same token must map to the same identity across handshakes
	req.Equal(domain.DeriveClientID(token), domain.DeriveClientID(token))
}

func Test_DeriveClientID_separates_tokens(t *testing.T) {
	req := require.New(t)

	one := domain.DeriveClientID([]byte(domain.NewToken()))
	other := domain.DeriveClientID([]byte(domain.NewToken()))

	req.NotEqual(one, other)
}

func Test_NewToken_has_the_handshake_length(t *testing.T) {
	req := require.New(t)

	token := domain.NewToken()

	req.Len(token, domain.TokenLength)
	req.NoError(uuid.Validate(token))
}

func Test_ClientID_string_form_is_a_uuid(t *testing.T) {
	req := require.New(t)

	id := domain.DeriveClientID([]byte("0d4a7b1e-93f2-4c55-8f14-2b9a6e7c1d30"))

	req.NoError(uuid.Validate(id.String()))
}
