package storage

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/spaolacci/murmur3"
)

// Envelope layout: magic(4) | timestamp(8, unix ms) | checksum(8, murmur3-64
// of payload) | payloadLen(4) | payload. The timestamp lets cleanup order
// entries without decoding payloads; the checksum catches bit rot before
// the codec ever runs.
var envelopeMagic = []byte("GRNE")

const envelopeHeaderSize = 4 + 8 + 8 + 4

var (
	// ErrEnvelopeCorrupted indicates the envelope header is unreadable,
	// typically from a truncated or partial write.
	ErrEnvelopeCorrupted = errors.New("storage: envelope corrupted")

	// ErrChecksumMismatch indicates the payload bytes do not match the
	// checksum recorded at write time.
	ErrChecksumMismatch = errors.New("storage: payload checksum mismatch")
)

// wrapEntry frames a payload with timestamp and checksum.
func wrapEntry(timestamp int64, payload []byte) []byte {
	out := make([]byte, envelopeHeaderSize+len(payload))
	copy(out, envelopeMagic)
	binary.BigEndian.PutUint64(out[4:12], uint64(timestamp))
	binary.BigEndian.PutUint64(out[12:20], murmur3.Sum64(payload))
	binary.BigEndian.PutUint32(out[20:24], uint32(len(payload)))
	copy(out[envelopeHeaderSize:], payload)
	return out
}

// unwrapEntry parses a framed entry. On checksum mismatch the payload is
// returned alongside the error so callers can attempt partial salvage.
// On header corruption any trailing bytes past the header are returned
// for the same reason.
func unwrapEntry(raw []byte) (timestamp int64, payload []byte, err error) {
	if len(raw) < envelopeHeaderSize || !bytes.Equal(raw[:4], envelopeMagic) {
		var rest []byte
		if len(raw) > envelopeHeaderSize {
			rest = raw[envelopeHeaderSize:]
		}
		return 0, rest, ErrEnvelopeCorrupted
	}

	timestamp = int64(binary.BigEndian.Uint64(raw[4:12]))
	wantSum := binary.BigEndian.Uint64(raw[12:20])
	wantLen := binary.BigEndian.Uint32(raw[20:24])

	payload = raw[envelopeHeaderSize:]
	if uint32(len(payload)) != wantLen {
		return timestamp, payload, ErrEnvelopeCorrupted
	}
	if murmur3.Sum64(payload) != wantSum {
		return timestamp, payload, ErrChecksumMismatch
	}
	return timestamp, payload, nil
}

// entryTimestamp reads just the timestamp of a framed entry, zero if the
// header is unreadable. Cleanup treats unreadable entries as oldest.
func entryTimestamp(raw []byte) int64 {
	if len(raw) < envelopeHeaderSize || !bytes.Equal(raw[:4], envelopeMagic) {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw[4:12]))
}
