package csrf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membergate/membergate/internal/dependencies/mocks"
	"github.com/membergate/membergate/internal/dependencies/random"
	"github.com/membergate/membergate/internal/model"
)

func TestIssueProducesDistinctTokens(t *testing.T) {
	guard := New(random.New())

	first, err := guard.Issue()
	require.NoError(t, err)
	second, err := guard.Issue()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestVerifyAcceptsMatchingTokens(t *testing.T) {
	guard := New(mocks.NewMockRandom())

	token, err := guard.Issue()
	require.NoError(t, err)

	assert.NoError(t, guard.Verify(token, token))
}

func TestVerifyRejectsMismatch(t *testing.T) {
	guard := New(mocks.NewMockRandom())

	err := guard.Verify("token-a", "token-b")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestVerifyRejectsMissingTokens(t *testing.T) {
	guard := New(mocks.NewMockRandom())

	assert.ErrorIs(t, guard.Verify("", "cookie"), model.ErrUnauthorized)
	assert.ErrorIs(t, guard.Verify("presented", ""), model.ErrUnauthorized)
	assert.ErrorIs(t, guard.Verify("", ""), model.ErrUnauthorized)
}
