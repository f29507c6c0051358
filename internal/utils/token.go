package utils

import (
	"crypto/sha512"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// SessionToken derives an opaque session token from the user's name, the
// stored password hash, the client address and the current timestamp.
// Each input is digested separately, the concatenated hex stream is
// character-shuffled and digested once more. The result is unpredictable
// and non-reversible but carries no integrity of its own: validity comes
// from the storage lookup, not from the token value.
func SessionToken(userName, passwordHash, clientAddr string) string {
	combined := SHA512Hex(userName) + SHA512Hex(passwordHash) +
		SHA512Hex(clientAddr) + SHA512Hex(strconv.FormatInt(time.Now().UnixMilli(), 10))
	chars := []byte(combined) // hex characters only, safe to shuffle bytewise
	rand.Shuffle(len(chars), func(i, j int) {
		chars[i], chars[j] = chars[j], chars[i]
	})
	return SHA512Hex(string(chars))
}

// SHA512Hex returns the uppercase hex SHA-512 digest of the input.
func SHA512Hex(input string) string {
	return fmt.Sprintf("%X", sha512.Sum512([]byte(input)))
}
