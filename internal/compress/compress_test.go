package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	compressible := bytes.Repeat([]byte("cluster-0001,"), 512)

	for _, typ := range []Type{None, LZ4, ZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			block, err := Encode(compressible, typ)
			require.NoError(t, err)
			if typ != None {
				assert.Less(t, len(block), len(compressible))
			}

			got, err := Decode(block, typ)
			require.NoError(t, err)
			assert.Equal(t, compressible, got)
		})
	}
}

func TestEncode_IncompressibleStoredRaw(t *testing.T) {
	data := []byte{0x01, 0x7f, 0x33}

	block, err := Encode(data, ZSTD)
	require.NoError(t, err)
	assert.Len(t, block, headerSize+len(data))

	got, err := Decode(block, ZSTD)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecode_Short(t *testing.T) {
	_, err := Decode([]byte{1, 2}, LZ4)
	assert.ErrorIs(t, err, ErrShortBlock)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, ZSTD, typ)

	_, err = ParseType("brotli")
	assert.ErrorIs(t, err, ErrUnknownType)
}
