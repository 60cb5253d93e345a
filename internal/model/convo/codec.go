package convo

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrCorruptState marks a stored memory blob that can no longer be decoded.
// Callers are expected to treat it as an empty history, not as a hard stop.
var ErrCorruptState = errors.New("corrupt conversation state")

// Encode serializes a memory into a portable string for the session store.
// The JSON payload is base64-wrapped so the stored value survives any
// string-safe key-value backend unchanged.
func Encode(m Memory) (string, error) {
	data, err := sonic.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode memory: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode restores a memory from its stored form. An empty string yields an
// empty history. Malformed input is reported as ErrCorruptState.
func Decode(encoded string) (Memory, error) {
	if encoded == "" {
		return Memory{}, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Memory{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	var m Memory
	if err := sonic.Unmarshal(data, &m); err != nil {
		return Memory{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return m, nil
}
