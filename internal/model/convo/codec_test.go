package convo_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumate/voicecoach/internal/model/convo"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	memory := convo.Memory{}.
		Append(convo.RoleUser, "I feel stuck at work").
		Append(convo.RoleAssistant, "Let's unpack that together.")

	encoded, err := convo.Encode(memory)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := convo.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, memory, decoded)
}

func TestDecodeEmptyString(t *testing.T) {
	decoded, err := convo.Decode("")
	require.NoError(t, err)
	require.True(t, decoded.Empty())
}

func TestDecodeCorruptBase64(t *testing.T) {
	_, err := convo.Decode("not base64 at all!!!")
	if !errors.Is(err, convo.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestDecodeCorruptPayload(t *testing.T) {
	// Valid base64 wrapping invalid JSON.
	_, err := convo.Decode("bm90IGpzb24=")
	if !errors.Is(err, convo.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestAppendDoesNotMutateOriginal(t *testing.T) {
	original := convo.Memory{}.Append(convo.RoleUser, "hello")
	extended := original.Append(convo.RoleAssistant, "hi there")

	require.Len(t, original.Turns, 1)
	require.Len(t, extended.Turns, 2)
}
