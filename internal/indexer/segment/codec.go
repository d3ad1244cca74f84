// Package segment persists index snapshots. A snapshot is written as one
// .spdx blob: a fixed little-endian header, four CBOR sections (term index,
// length table, IDF table, metadata) and a BLAKE3 footer. Sections use Core
// Deterministic Encoding, so equal snapshots encode to equal bytes before
// compression.
package segment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize           = 128
	FooterSize           = 32

	fixedHeaderSize  = 32
	sectionEntrySize = 24
	maxSectionBytes  = 1 << 31
)

// Compression is the file-wide section codec.
type Compression uint32

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint32(c))
	}
}

// ParseCompression maps a config value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "zstd":
		return CompressionZstd, nil
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown snapshot compression %q", s)
	}
}

var (
	// ErrCorrupt covers bad magic, truncation, digest mismatch and
	// undecodable sections.
	ErrCorrupt = errors.New("corrupt snapshot file")
	// ErrVersion means the file was written by an incompatible format.
	ErrVersion = errors.New("unsupported snapshot format version")
)

// Section order in the header and the file.
const (
	sectionIndex = iota
	sectionLengths
	sectionIDF
	sectionMeta
	sectionCount
)

// Header is the decoded fixed-size file header.
type Header struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	DocCount    uint32
	CreatedAt   int64
	Compression Compression
	Sections    [sectionCount]Section
}

// Section locates one encoded section. Size equal to RawSize means the
// section is stored uncompressed.
type Section struct {
	Offset  int64
	Size    int64
	RawSize int64
}

type metaRecord struct {
	TotalDocuments        int     `cbor:"1,keyasint"`
	AverageDocumentLength float64 `cbor:"2,keyasint"`
	UpdatedAt             int64   `cbor:"3,keyasint"`
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("segment: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 30, MaxMapPairs: 1 << 30}.DecMode()
	if err != nil {
		panic("segment: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("segment: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("segment: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serialises snap with zstd sections.
func Encode(snap *index.Snapshot) ([]byte, error) {
	return EncodeWith(snap, CompressionZstd)
}

var sectionNames = [sectionCount]string{"index", "lengths", "idf", "metadata"}

// encodeSections returns the deterministic CBOR encoding of each section.
func encodeSections(snap *index.Snapshot) ([sectionCount][]byte, error) {
	meta := metaRecord{
		TotalDocuments:        snap.Meta.TotalDocuments,
		AverageDocumentLength: snap.Meta.AverageDocumentLength,
		UpdatedAt:             snap.Meta.UpdatedAt.UnixNano(),
	}
	parts := [sectionCount]any{snap.Index, snap.Lengths, snap.IDF, meta}
	var out [sectionCount][]byte
	for i, part := range parts {
		raw, err := encMode.Marshal(part)
		if err != nil {
			return out, fmt.Errorf("encoding %s section: %w", sectionNames[i], err)
		}
		out[i] = raw
	}
	return out, nil
}

// Fingerprint is the BLAKE3 digest of snap's uncompressed sections. It
// depends only on snapshot content, so a snapshot saved by one process and
// loaded by another has the same fingerprint in both.
func Fingerprint(snap *index.Snapshot) ([32]byte, error) {
	sections, err := encodeSections(snap)
	if err != nil {
		return [32]byte{}, err
	}
	h := blake3.New()
	var size [8]byte
	for _, raw := range sections {
		binary.LittleEndian.PutUint64(size[:], uint64(len(raw)))
		h.Write(size[:])
		h.Write(raw)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// EncodeWith serialises snap using the given section compression.
func EncodeWith(snap *index.Snapshot, c Compression) ([]byte, error) {
	sections, err := encodeSections(snap)
	if err != nil {
		return nil, err
	}
	h := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		TermCount:   uint32(len(snap.Index)),
		DocCount:    uint32(snap.Meta.TotalDocuments),
		CreatedAt:   time.Now().UnixNano(),
		Compression: c,
	}
	var body bytes.Buffer
	for i, raw := range sections {
		stored, err := compress(c, raw)
		if err != nil {
			return nil, fmt.Errorf("compressing %s section: %w", sectionNames[i], err)
		}
		h.Sections[i] = Section{
			Offset:  int64(HeaderSize + body.Len()),
			Size:    int64(len(stored)),
			RawSize: int64(len(raw)),
		}
		body.Write(stored)
	}

	out := make([]byte, 0, HeaderSize+body.Len()+FooterSize)
	out = append(out, h.marshal()...)
	out = append(out, body.Bytes()...)
	digest := blake3.Sum256(out)
	return append(out, digest[:]...), nil
}

// Decode parses and validates an encoded snapshot. It never returns a
// partially populated snapshot.
func Decode(data []byte) (*index.Snapshot, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than header and footer", ErrCorrupt, len(data))
	}
	payload, footer := data[:len(data)-FooterSize], data[len(data)-FooterSize:]
	if digest := blake3.Sum256(payload); !bytes.Equal(digest[:], footer) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	snap := &index.Snapshot{}
	var meta metaRecord
	targets := [sectionCount]any{&snap.Index, &snap.Lengths, &snap.IDF, &meta}
	for i, sec := range h.Sections {
		if sec.Offset < HeaderSize || sec.Offset > int64(len(payload)) || sec.Size < 0 || sec.Size > int64(len(payload))-sec.Offset {
			return nil, fmt.Errorf("%w: section %d out of bounds", ErrCorrupt, i)
		}
		raw, err := decompress(h.Compression, data[sec.Offset:sec.Offset+sec.Size], sec.RawSize)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d: %v", ErrCorrupt, i, err)
		}
		if err := decMode.Unmarshal(raw, targets[i]); err != nil {
			return nil, fmt.Errorf("%w: decoding section %d: %v", ErrCorrupt, i, err)
		}
	}
	snap.Meta = index.Metadata{
		TotalDocuments:        meta.TotalDocuments,
		AverageDocumentLength: meta.AverageDocumentLength,
		UpdatedAt:             time.Unix(0, meta.UpdatedAt).UTC(),
	}
	if snap.Index == nil {
		snap.Index = make(index.TermIndex)
	}
	if snap.Lengths == nil {
		snap.Lengths = make(map[int]int)
	}
	if snap.IDF == nil {
		snap.IDF = make(map[string]float64)
	}
	if int(h.TermCount) != len(snap.Index) || int(h.DocCount) != snap.Meta.TotalDocuments {
		return nil, fmt.Errorf("%w: header counts %d/%d disagree with sections", ErrCorrupt, h.TermCount, h.DocCount)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// ReadHeader decodes and checks the fixed header.
func ReadHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: truncated header (%d bytes)", ErrCorrupt, len(data))
	}
	le := binary.LittleEndian
	h.Magic = le.Uint32(data[0:4])
	if h.Magic != MagicBytes {
		return h, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, h.Magic)
	}
	h.Version = le.Uint32(data[4:8])
	if h.Version != FormatVersion {
		return h, fmt.Errorf("%w: got %d, want %d", ErrVersion, h.Version, FormatVersion)
	}
	h.TermCount = le.Uint32(data[8:12])
	h.DocCount = le.Uint32(data[12:16])
	h.CreatedAt = int64(le.Uint64(data[16:24]))
	h.Compression = Compression(le.Uint32(data[24:28]))
	for i := range h.Sections {
		base := fixedHeaderSize + i*sectionEntrySize
		h.Sections[i] = Section{
			Offset:  int64(le.Uint64(data[base : base+8])),
			Size:    int64(le.Uint64(data[base+8 : base+16])),
			RawSize: int64(le.Uint64(data[base+16 : base+24])),
		}
	}
	return h, nil
}

func (h Header) marshal() []byte {
	b := make([]byte, HeaderSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], h.Magic)
	le.PutUint32(b[4:8], h.Version)
	le.PutUint32(b[8:12], h.TermCount)
	le.PutUint32(b[12:16], h.DocCount)
	le.PutUint64(b[16:24], uint64(h.CreatedAt))
	le.PutUint32(b[24:28], uint32(h.Compression))
	for i, s := range h.Sections {
		base := fixedHeaderSize + i*sectionEntrySize
		le.PutUint64(b[base:base+8], uint64(s.Offset))
		le.PutUint64(b[base+8:base+16], uint64(s.Size))
		le.PutUint64(b[base+16:base+24], uint64(s.RawSize))
	}
	return b
}

// compress returns raw itself when the codec does not shrink it.
func compress(c Compression, raw []byte) ([]byte, error) {
	var out []byte
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		out = zstdEncoder.EncodeAll(raw, nil)
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			return raw, nil
		}
		out = dst[:n]
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
	if len(out) >= len(raw) {
		return raw, nil
	}
	return out, nil
}

func decompress(c Compression, stored []byte, rawSize int64) ([]byte, error) {
	if rawSize < 0 || rawSize > maxSectionBytes {
		return nil, fmt.Errorf("implausible section size %d", rawSize)
	}
	if int64(len(stored)) == rawSize {
		return stored, nil
	}
	switch c {
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(out)) != rawSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), rawSize)
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if int64(n) != rawSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, rawSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("section compressed with unsupported codec %s", c)
	}
}
