package cache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression tags stored in the first byte after the blob magic.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
	// CompressionAuto probes the payload and picks one of the above.
	CompressionAuto Compression = 0xff
)

const (
	blobMagic   = "ACB1"
	maxBlobSize = 1 << 32
)

var errIncompressible = errors.New("data is incompressible")

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionAuto:
		return "auto"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("cache: cbor encoder: " + err.Error())
	}
	// Records written by an older layout fail to decode instead of
	// silently dropping fields.
	decMode, err = cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic("cache: cbor decoder: " + err.Error())
	}
	if zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic("cache: zstd encoder: " + err.Error())
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic("cache: zstd decoder: " + err.Error())
	}
}

// selectCompression tries zstd and keeps it for good ratios, falls back to
// lz4 for modest ones and stores anything else raw.
func selectCompression(data []byte) Compression {
	if len(data) < 64 {
		return CompressionNone
	}
	ratio := float64(len(data)) / float64(len(zstdEncoder.EncodeAll(data, nil)))
	switch {
	case ratio >= 1.5:
		return CompressionZstd
	case ratio >= 1.1:
		return CompressionLZ4
	}
	return CompressionNone
}

func compressBlob(data []byte, tag Compression) ([]byte, Compression, error) {
	if tag == CompressionAuto {
		tag = selectCompression(data)
	}
	var payload []byte
	switch tag {
	case CompressionNone:
		payload = data
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(data) {
			return compressBlob(data, CompressionNone)
		}
		payload = dst[:n]
	case CompressionZstd:
		payload = zstdEncoder.EncodeAll(data, nil)
	default:
		return nil, 0, fmt.Errorf("unsupported compression %s", tag)
	}

	out := make([]byte, 0, len(blobMagic)+1+binary.MaxVarintLen64+len(payload))
	out = append(out, blobMagic...)
	out = append(out, byte(tag))
	out = binary.AppendUvarint(out, uint64(len(data)))
	return append(out, payload...), tag, nil
}

func decompressBlob(blob []byte) ([]byte, error) {
	if len(blob) < len(blobMagic)+2 || string(blob[:len(blobMagic)]) != blobMagic {
		return nil, errors.New("bad cache blob header")
	}
	tag := Compression(blob[len(blobMagic)])
	size, n := binary.Uvarint(blob[len(blobMagic)+1:])
	if n <= 0 || size > maxBlobSize {
		return nil, errors.New("bad cache blob size")
	}
	payload := blob[len(blobMagic)+1+n:]

	switch tag {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, fmt.Errorf("blob holds %d bytes, expected %d", len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		dst := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return dst, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(out)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported compression %s", tag)
}
