package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Frame{
		Type:         REGISTER,
		PodName:      "inference-0",
		PodNamespace: "default",
		ID:           0,
		Data:         "",
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))
	assert.Equal(t, FrameSize, buf.Len())

	out, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeTruncatesOverlongFields(t *testing.T) {
	in := Frame{
		Type:    LOCK_OK,
		PodName: strings.Repeat("x", MaxLabelLen+50),
		Data:    strings.Repeat("9", MaxDataLen+5),
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))

	out, err := Decode(&buf)
	require.NoError(t, err)
	assert.Len(t, out.PodName, MaxLabelLen)
	assert.Len(t, out.Data, MaxDataLen)
}

func TestDecodeShortReadIsError(t *testing.T) {
	_, err := Decode(bytes.NewReader(make([]byte, FrameSize-1)))
	require.Error(t, err)
}

func TestDecodeEOFIsError(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	require.Error(t, err)
	assert.True(t, err != nil)
}

type flakyWriter struct{ n int }

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n == 1 {
		return len(p) - 1, io.ErrShortWrite
	}
	return len(p), nil
}

func TestEncodePropagatesWriteError(t *testing.T) {
	err := Encode(&flakyWriter{}, Frame{Type: REQ_LOCK})
	require.Error(t, err)
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "REGISTER", REGISTER.String())
	assert.Equal(t, "SET_TQ", SET_TQ.String())
	assert.Contains(t, MessageType(99).String(), "99")
}
