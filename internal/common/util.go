package common

// WipeByteArray zeroes b in place. Passwords read from the terminal are
// wiped once the login request has been sent.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
