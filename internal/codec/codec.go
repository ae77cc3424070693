// Package codec provides the reversible transform between an in-memory
// Snapshot and its serialized byte form.
//
// Serialization is canonical JSON. An optional compression pass applies
// a fixed key-substitution table (long field names to short tokens) on
// the serialized text; compressed payloads carry a marker prefix so
// Decode can recognize and exactly invert the substitution.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/elacour/granary/internal/core/domain"
)

// compressMarker prefixes payloads that went through key substitution.
var compressMarker = []byte("GRNC1|")

// substitution is one entry of the key-substitution table.
type substitution struct {
	long  string
	short string
}

// substitutions is the fixed key-substitution table. It is part of the
// format contract: changing it invalidates every compressed payload in
// the wild. Entries are applied in order; longer names first so no
// replacement can clobber a later one.
var substitutions = []substitution{
	{`"worldSubsystems"`, `"@ws"`},
	{`"originalVersion"`, `"@ov"`},
	{`"characterName"`, `"@cn"`},
	{`"musicVolume"`, `"@mv"`},
	{`"soundVolume"`, `"@sv"`},
	{`"inventory"`, `"@iv"`},
	{`"timestamp"`, `"@ts"`},
	{`"textSpeed"`, `"@tx"`},
	{`"farmName"`, `"@fn"`},
	{`"gameTime"`, `"@gt"`},
	{`"metadata"`, `"@md"`},
	{`"position"`, `"@ps"`},
	{`"quantity"`, `"@qt"`},
	{`"saveSlot"`, `"@sl"`},
	{`"settings"`, `"@st"`},
	{`"capacity"`, `"@cp"`},
	{`"player"`, `"@pl"`},
	{`"season"`, `"@sn"`},
}

// DecodeError is a typed decode failure for the recovery engine to
// classify. Stage identifies where decoding broke down.
type DecodeError struct {
	Stage string // "expand" or "parse"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode failed at %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Codec is the Snapshot <-> bytes transform.
type Codec struct {
	compress bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithCompression enables the key-substitution pass on encode.
// Decode always understands both forms.
func WithCompression(enabled bool) Option {
	return func(c *Codec) {
		c.compress = enabled
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode serializes a snapshot, applying key substitution if the codec
// was built with compression enabled.
func (c *Codec) Encode(s *domain.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("codec: snapshot is nil")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal snapshot: %w", err)
	}
	if !c.compress {
		return data, nil
	}
	return compact(data), nil
}

// EncodeCompact serializes with key substitution regardless of the
// codec's configuration. Used as the quota-recovery fallback: smaller
// payloads buy headroom after a cleanup pass.
func (c *Codec) EncodeCompact(s *domain.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("codec: snapshot is nil")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal snapshot: %w", err)
	}
	return compact(data), nil
}

// Decode reverses substitution (if the marker is present) and parses
// the snapshot. Any failure surfaces as a *DecodeError.
func (c *Codec) Decode(data []byte) (*domain.Snapshot, error) {
	plain, err := c.Expand(data)
	if err != nil {
		return nil, err
	}

	var s domain.Snapshot
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, &DecodeError{Stage: "parse", Err: err}
	}
	return &s, nil
}

// Expand strips the compression marker and inverts the substitution
// table without parsing. The result is plain JSON text, suitable for
// partial salvage or migration when full parsing fails downstream.
func (c *Codec) Expand(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Stage: "expand", Err: fmt.Errorf("empty payload")}
	}
	if !bytes.HasPrefix(data, compressMarker) {
		return data, nil
	}

	plain := data[len(compressMarker):]
	for _, sub := range substitutions {
		plain = bytes.ReplaceAll(plain, []byte(sub.short), []byte(sub.long))
	}
	return plain, nil
}

// compact applies the substitution table and prepends the marker.
// If the serialized text already contains any short token, substitution
// could not be inverted exactly, so the payload is emitted uncompressed.
func compact(data []byte) []byte {
	for _, sub := range substitutions {
		if bytes.Contains(data, []byte(sub.short)) {
			return data
		}
	}

	out := data
	for _, sub := range substitutions {
		out = bytes.ReplaceAll(out, []byte(sub.long), []byte(sub.short))
	}

	buf := make([]byte, 0, len(compressMarker)+len(out))
	buf = append(buf, compressMarker...)
	buf = append(buf, out...)
	return buf
}

// IsCompressed reports whether a payload carries the compression marker.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, compressMarker)
}
