package execengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTargetAcceptsHostname(t *testing.T) {
	assert.NoError(t, validateTarget("scanme.example.test", false))
}

func TestValidateTargetAcceptsPublicIP(t *testing.T) {
	assert.NoError(t, validateTarget("93.184.216.34", false))
}

func TestValidateTargetRejectsLoopback(t *testing.T) {
	err := validateTarget("127.0.0.1", false)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestValidateTargetRejectsLoopbackIPv6(t *testing.T) {
	err := validateTarget("::1", false)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestValidateTargetRejectsPrivateRange(t *testing.T) {
	err := validateTarget("10.0.0.5", false)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestValidateTargetAllowsPrivateWhenFlagSet(t *testing.T) {
	assert.NoError(t, validateTarget("10.0.0.5", true))
}

func TestValidateTargetAcceptsURLHost(t *testing.T) {
	assert.NoError(t, validateTarget("https://example.test/admin", false))
}

func TestValidateTargetRejectsMalformedHost(t *testing.T) {
	err := validateTarget("not a host!!", false)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestValidateTargetRejectsEmpty(t *testing.T) {
	err := validateTarget("", false)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
