// internal/blob/blob.go
package blob

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// ZeroOID is the sentinel object ID for a file that does not exist.
// It is compared by equality to detect add/delete transitions and is
// never produced by hashing real content.
const ZeroOID = "0000000000000000000000000000000000000000"

// OID computes the git-compatible blob object ID for content:
// sha1("blob <len>\0<content>"), hex encoded.
func OID(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob "))
	h.Write([]byte(strconv.Itoa(len(content))))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Abbrev shortens an object ID to the 7-character form used in
// diff index lines.
func Abbrev(oid string) string {
	if len(oid) < 7 {
		return oid
	}
	return oid[:7]
}
