package recaptcha

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDummyServiceAlwaysValid(t *testing.T) {
	var c Client = NewDummyService()

	inputs := [][2]string{
		{"", ""},
		{"challenge", ""},
		{"", "response"},
		{"challenge", "response"},
	}
	for _, in := range inputs {
		res, err := c.WithRemoteIP("").Verify(context.Background(), in[0], in[1])
		require.NoError(t, err)
		assert.True(t, res.IsValid())
		assert.Empty(t, res.ErrorCode())
		assert.Empty(t, res.Challenge())
	}
}

func TestDummyServiceWidgetURLs(t *testing.T) {
	d := NewDummyService()

	u, err := d.ChallengeURL("incorrect-captcha-sol")
	require.NoError(t, err)
	assert.Empty(t, u)

	u, err = d.NoscriptURL("")
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestResponseAccessors(t *testing.T) {
	r := NewResponse("chal", false, ErrorIncorrectSolution)

	assert.Equal(t, "chal", r.Challenge())
	assert.False(t, r.IsValid())
	assert.Equal(t, "incorrect-captcha-sol", r.ErrorCode())
}
