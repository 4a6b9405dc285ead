package domain

import "testing"

// FuzzParseUserID checks that parsing never panics and that accepted values
// round-trip through String.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("1")
	f.Add("9223372036854775807")
	f.Add("9223372036854775808")
	f.Add("-1")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err != nil {
			return
		}
		if id <= 0 {
			t.Fatalf("accepted non-positive id %d from %q", id, input)
		}
		again, err := ParseUserID(id.String())
		if err != nil || again != id {
			t.Fatalf("round-trip failed for %q: %v", input, err)
		}
	})
}
