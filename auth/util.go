package auth

import (
	"crypto/md5"
	"encoding/hex"
)

// mongoPasswordDigest derives the shared secret used by MONGODB-CR and
// as the SCRAM-SHA-1 password: the hex md5 of "user:mongo:password".
// The server stores this digest, never the raw password.
func mongoPasswordDigest(username, password string) string {
	h := md5.New()
	h.Write([]byte(username))
	h.Write([]byte(":mongo:"))
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}
