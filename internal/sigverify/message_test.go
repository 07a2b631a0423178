package sigverify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "portrait/pkg/domain"
)

func TestMessage_CanonicalFormat(t *testing.T) {
	params, err := id.ParseHash("0x00000000000000000000000000000000000000000000000000000000000000ff")
	require.NoError(t, err)

	data := SigData{
		Action:         "ToggleDelegateFor",
		Target:         "DelegationRegistry",
		TargetType:     "Registry",
		Version:        1,
		Params:         params,
		ExpirationTime: 1735689600,
	}

	want := "Portrait wants you to authorize the following action with your account." +
		"\n\nAction: ToggleDelegateFor" +
		"\nTarget: DelegationRegistry" +
		"\nTarget Type: Registry" +
		"\nVersion: 1" +
		"\nData: 0x00000000000000000000000000000000000000000000000000000000000000ff" +
		"\nExpiration Time: 1735689600"
	assert.Equal(t, want, data.Message())
}

func TestMessage_IntegerRendering(t *testing.T) {
	data := SigData{Action: "X", Target: "Y", TargetType: "Z", Version: 0, ExpirationTime: 0}
	msg := data.Message()
	assert.Contains(t, msg, "\nVersion: 0\n", "zero renders as a single digit")
	assert.True(t, strings.HasSuffix(msg, "Expiration Time: 0"))
}

func TestDigest_BindsEveryField(t *testing.T) {
	base := SigData{
		Action:         "RegisterFor",
		Target:         "IdentityRegistry",
		TargetType:     "Registry",
		Version:        2,
		ExpirationTime: 100,
	}

	mutations := map[string]SigData{
		"action":     {Action: "TransferFor", Target: base.Target, TargetType: base.TargetType, Version: base.Version, ExpirationTime: base.ExpirationTime},
		"target":     {Action: base.Action, Target: "DelegationRegistry", TargetType: base.TargetType, Version: base.Version, ExpirationTime: base.ExpirationTime},
		"version":    {Action: base.Action, Target: base.Target, TargetType: base.TargetType, Version: 3, ExpirationTime: base.ExpirationTime},
		"expiration": {Action: base.Action, Target: base.Target, TargetType: base.TargetType, Version: base.Version, ExpirationTime: 101},
	}

	for name, mutated := range mutations {
		assert.NotEqual(t, base.Digest(), mutated.Digest(), "digest must change when %s changes", name)
	}

	// Deterministic for identical input.
	assert.Equal(t, base.Digest(), base.Digest())
}

func TestParams_Packing(t *testing.T) {
	owner, err := id.ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	delegate, err := id.ParseAddress("0x2222222222222222222222222222222222222222")
	require.NoError(t, err)

	sum := NewParams().Address(owner).Address(delegate).Bool(true).Sum()

	t.Run("order matters", func(t *testing.T) {
		swapped := NewParams().Address(delegate).Address(owner).Bool(true).Sum()
		assert.NotEqual(t, sum, swapped)
	})

	t.Run("state snapshot is bound", func(t *testing.T) {
		otherState := NewParams().Address(owner).Address(delegate).Bool(false).Sum()
		assert.NotEqual(t, sum, otherState, "currentHasAssigned snapshot must change the digest")
	})

	t.Run("deterministic", func(t *testing.T) {
		again := NewParams().Address(owner).Address(delegate).Bool(true).Sum()
		assert.Equal(t, sum, again)
	})

	t.Run("uint64 and portrait id pack identically", func(t *testing.T) {
		a := NewParams().Uint64(42).Sum()
		b := NewParams().PortraitID(id.PortraitID(42)).Sum()
		assert.Equal(t, a, b)
	})
}
