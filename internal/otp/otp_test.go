package otp

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{5}$`)

func TestIssue_FormatAndExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	code, err := NewIssuer().Issue(now)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, code.Value)
	assert.Equal(t, now.Add(10*time.Minute), code.ExpiresAt)
}

func TestIssue_UsesWholeAlphabet(t *testing.T) {
	issuer := NewIssuer()
	var upper, lower, digit bool
	for range 500 {
		code, err := issuer.Issue(time.Now())
		require.NoError(t, err)
		for _, r := range code.Value {
			switch {
			case r >= 'A' && r <= 'Z':
				upper = true
			case r >= 'a' && r <= 'z':
				lower = true
			case r >= '0' && r <= '9':
				digit = true
			default:
				t.Fatalf("unexpected character %q in %q", r, code.Value)
			}
		}
	}
	assert.True(t, upper && lower && digit)
}

func TestCode_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	code := Code{Value: "aB3dE", ExpiresAt: now.Add(TTL)}

	assert.False(t, code.Expired(now))
	assert.False(t, code.Expired(now.Add(TTL)))
	assert.True(t, code.Expired(now.Add(TTL+time.Second)))
}
