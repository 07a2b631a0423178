package domain

import "testing"

// FuzzParseAddress checks the trust-boundary invariant: arbitrary input never
// panics, and accepted input round-trips through String unchanged.
func FuzzParseAddress(f *testing.F) {
	f.Add("")
	f.Add("0x00112233445566778899aabbccddeeff00112233")
	f.Add("0x0000000000000000000000000000000000000000")
	f.Add("not-an-address")
	f.Add("0x" + string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		addr, err := ParseAddress(input)
		if err != nil {
			return
		}
		back, err := ParseAddress(addr.String())
		if err != nil {
			t.Fatalf("accepted address failed round-trip: %v", err)
		}
		if back != addr {
			t.Fatal("round-trip changed address value")
		}
	})
}

// FuzzParsePortraitID checks that zero is never accepted and accepted IDs
// round-trip.
func FuzzParsePortraitID(f *testing.F) {
	f.Add("")
	f.Add("0")
	f.Add("1")
	f.Add("18446744073709551615")
	f.Add("-5")

	f.Fuzz(func(t *testing.T, input string) {
		pid, err := ParsePortraitID(input)
		if err != nil {
			return
		}
		if !pid.IsValid() {
			t.Fatal("parser accepted the unissuable zero id")
		}
		back, err := ParsePortraitID(pid.String())
		if err != nil || back != pid {
			t.Fatalf("accepted id failed round-trip: %v", err)
		}
	})
}
