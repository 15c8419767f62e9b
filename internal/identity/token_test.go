package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	i := newTokenIssuer("test-secret", time.Hour)

	p := domain.Principal{
		UserID: "u1",
		Email:  "learner@example.com",
		Role:   domain.RoleLearner,
	}

	token, err := i.issue(p)
	require.NoError(t, err)

	got, err := i.parse(token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokenIssuer_Parse(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T) (i *tokenIssuer, token string)
	}{
		"should reject a token signed with another secret": {
			arrange: func(t *testing.T) (*tokenIssuer, string) {
				other := newTokenIssuer("other-secret", time.Hour)
				token, err := other.issue(domain.Principal{UserID: "u1", Role: domain.RoleLearner})
				require.NoError(t, err)
				return newTokenIssuer("test-secret", time.Hour), token
			},
		},

		"should reject an expired token": {
			arrange: func(t *testing.T) (*tokenIssuer, string) {
				i := newTokenIssuer("test-secret", -time.Minute)
				token, err := i.issue(domain.Principal{UserID: "u1", Role: domain.RoleLearner})
				require.NoError(t, err)
				return i, token
			},
		},

		"should reject garbage": {
			arrange: func(t *testing.T) (*tokenIssuer, string) {
				return newTokenIssuer("test-secret", time.Hour), "not-a-token"
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			i, token := tt.arrange(t)

			_, err := i.parse(token)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeUnauthenticated))
		})
	}
}
