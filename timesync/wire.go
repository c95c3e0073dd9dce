package timesync

import (
	"encoding/binary"
	"strings"
)

const (
	replyACK    = "ACK"
	replyDupID  = "DUP_ID"
	replyErr    = "ERR"
	readyPrefix = "READY "

	// maxIDLen is the maximum length of a participant identity.
	maxIDLen = 63
)

// encodeTick serializes virtual time as the 8-byte little-endian payload
// broadcast on the tick channel.
func encodeTick(t uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, t)
	return buf
}

// decodeTick is the inverse of encodeTick. ok is false if payload is not
// exactly 8 bytes, in which case the message must be skipped rather than
// treated as an error: a malformed tick frame is protocol drift, not a
// fatal condition for the client loop.
func decodeTick(payload []byte) (t uint64, ok bool) {
	if len(payload) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(payload), true
}

// encodeHandshake builds the "READY <id>" registration request.
func encodeHandshake(id string) []byte {
	return []byte(readyPrefix + id)
}

// decodeHandshake parses a "READY <id>" request, returning ok=false if it
// is malformed: missing the literal prefix, or an empty/oversized id.
func decodeHandshake(payload []byte) (id string, ok bool) {
	s := string(payload)
	if !strings.HasPrefix(s, readyPrefix) {
		return "", false
	}
	id = s[len(readyPrefix):]
	if len(id) == 0 || len(id) > maxIDLen {
		return "", false
	}
	return id, true
}

// validID reports whether id satisfies the nonempty, ≤63-byte identity
// constraint. NewClient uses it to check the configured id; the server
// does not apply it to incoming tick-ACK ids.
func validID(id string) bool {
	return len(id) > 0 && len(id) <= maxIDLen
}
