package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
)

// sampleSnapshot builds a consistent snapshot over docs documents with a
// repetitive vocabulary so compression has something to do.
func sampleSnapshot(docs int) *index.Snapshot {
	s := index.New()
	for d := 0; d < docs; d++ {
		length := 0
		for t := 0; t <= d%7; t++ {
			term := fmt.Sprintf("term%03d", (d+t)%50)
			s.Index[term] = append(s.Index[term], index.Posting{DocID: d, Frequency: t + 1})
			length += t + 1
		}
		s.Lengths[d] = length
	}
	s.Finalize(time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC))
	return s
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			orig := sampleSnapshot(200)
			data, err := EncodeWith(orig, c)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			if diff := cmp.Diff(orig, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			h, err := ReadHeader(data)
			require.NoError(t, err)
			assert.Equal(t, c, h.Compression)
			assert.Equal(t, uint32(len(orig.Index)), h.TermCount)
			assert.Equal(t, uint32(200), h.DocCount)
		})
	}
}

func TestRoundTripEmpty(t *testing.T) {
	orig := index.New()
	orig.Finalize(time.Unix(0, 0))
	data, err := Encode(orig)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Meta.TotalDocuments)
	assert.Empty(t, got.Index)
	assert.NotNil(t, got.Lengths)
}

func TestCompressionShrinks(t *testing.T) {
	snap := sampleSnapshot(500)
	plain, err := EncodeWith(snap, CompressionNone)
	require.NoError(t, err)
	packed, err := EncodeWith(snap, CompressionZstd)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain))
}

func TestEncodingIsDeterministic(t *testing.T) {
	a, err := EncodeWith(sampleSnapshot(50), CompressionZstd)
	require.NoError(t, err)
	b, err := EncodeWith(sampleSnapshot(50), CompressionZstd)
	require.NoError(t, err)
	// headers differ only by creation time
	assert.True(t, bytes.Equal(a[HeaderSize:len(a)-FooterSize], b[HeaderSize:len(b)-FooterSize]))
}

func TestFingerprint(t *testing.T) {
	want, err := Fingerprint(sampleSnapshot(50))
	require.NoError(t, err)

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		data, err := EncodeWith(sampleSnapshot(50), c)
		require.NoError(t, err)
		loaded, err := Decode(data)
		require.NoError(t, err)
		got, err := Fingerprint(loaded)
		require.NoError(t, err)
		assert.Equal(t, want, got, c.String())
	}

	other, err := Fingerprint(sampleSnapshot(51))
	require.NoError(t, err)
	assert.NotEqual(t, want, other)
}

func TestDecodeRejects(t *testing.T) {
	good, err := Encode(sampleSnapshot(30))
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"empty", func(b []byte) []byte { return nil }, ErrCorrupt},
		{"truncated header", func(b []byte) []byte { return b[:HeaderSize-1] }, ErrCorrupt},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-10] }, ErrCorrupt},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }, ErrCorrupt},
		{"flipped body byte", func(b []byte) []byte { b[HeaderSize+3] ^= 0x01; return b }, ErrCorrupt},
		{"flipped footer byte", func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }, ErrCorrupt},
		{"section size overflows offset", func(b []byte) []byte {
			base := fixedHeaderSize
			binary.LittleEndian.PutUint64(b[base:base+8], HeaderSize+1)
			binary.LittleEndian.PutUint64(b[base+8:base+16], math.MaxInt64)
			return resign(b)
		}, ErrCorrupt},
		{"section offset past payload", func(b []byte) []byte {
			base := fixedHeaderSize + sectionEntrySize
			binary.LittleEndian.PutUint64(b[base:base+8], uint64(len(b)))
			binary.LittleEndian.PutUint64(b[base+8:base+16], 0)
			return resign(b)
		}, ErrCorrupt},
		{"old version", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[4:8], 1)
			return b
		}, ErrVersion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.mutate(bytes.Clone(good))
			snap, err := Decode(data)
			assert.Nil(t, snap)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

// resign recomputes the footer digest so header tampering reaches the
// section bounds checks.
func resign(b []byte) []byte {
	payload := b[:len(b)-FooterSize]
	digest := blake3.Sum256(payload)
	copy(b[len(b)-FooterSize:], digest[:])
	return b
}

func TestDecodeRunsValidation(t *testing.T) {
	bad := sampleSnapshot(10)
	bad.IDF["term000"] = 42
	data, err := Encode(bad)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorIs(t, err, apperrors.ErrInconsistentSnapshot)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionZstd, "zstd": CompressionZstd, "none": CompressionNone, "lz4": CompressionLZ4} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}

func BenchmarkEncode(b *testing.B) {
	snap := sampleSnapshot(5000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(snap); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	data, err := Encode(sampleSnapshot(5000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
