// Package gridio persists voxel occupancy grids as a compact versioned
// binary artifact. Cells are bit-packed and zstd-compressed; an
// xxhash64 checksum over the packed bits guards against truncated or
// corrupted files.
//
// Layout, all little-endian after the magic:
//
//	magic    "AVXG"
//	version  uint8
//	codec    uint8 (0 = raw, 2 = zstd)
//	nx,ny,nz uint32
//	pitch    float64
//	origin   3 x float64
//	checksum uint64 (xxhash64 of the packed bits)
//	plen     uint32
//	payload  plen bytes
package gridio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

const (
	magic   = "AVXG"
	version = 1

	codecRaw  = 0
	codecZstd = 2
)

var (
	// ErrBadArtifact is returned when the file is not a grid artifact or
	// its header is inconsistent.
	ErrBadArtifact = errors.New("not a valid voxel grid artifact")

	// ErrChecksumMismatch is returned when the packed cell bits do not
	// hash to the stored checksum.
	ErrChecksumMismatch = errors.New("voxel grid artifact checksum mismatch")
)

// WriteGrid saves the grid to the given path.
func WriteGrid(path string, g *models.VoxelGrid) error {
	packed := packBits(g.Cells)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to init zstd encoder: %w", err)
	}
	payload := enc.EncodeAll(packed, nil)
	enc.Close()
	codec := uint8(codecZstd)
	if len(payload) >= len(packed) {
		payload = packed
		codec = codecRaw
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(version)
	buf.WriteByte(codec)
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, uint32(g.NX))
	_ = binary.Write(&buf, le, uint32(g.NY))
	_ = binary.Write(&buf, le, uint32(g.NZ))
	_ = binary.Write(&buf, le, g.Pitch)
	_ = binary.Write(&buf, le, g.Origin.X)
	_ = binary.Write(&buf, le, g.Origin.Y)
	_ = binary.Write(&buf, le, g.Origin.Z)
	_ = binary.Write(&buf, le, xxhash.Sum64(packed))
	_ = binary.Write(&buf, le, uint32(len(payload)))
	buf.Write(payload)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write grid artifact: %w", err)
	}
	return nil
}

// ReadGrid loads a grid artifact from the given path.
func ReadGrid(path string) (*models.VoxelGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid artifact: %w", err)
	}
	if len(data) < len(magic)+2 || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadArtifact)
	}
	r := bytes.NewReader(data[len(magic):])

	var ver, codec uint8
	le := binary.LittleEndian
	if err := binary.Read(r, le, &ver); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadArtifact, ver)
	}
	if err := binary.Read(r, le, &codec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}

	var nx, ny, nz, plen uint32
	var pitch float64
	var origin geometry.Vector
	var checksum uint64
	for _, field := range []any{&nx, &ny, &nz, &pitch, &origin.X, &origin.Y, &origin.Z, &checksum, &plen} {
		if err := binary.Read(r, le, field); err != nil {
			return nil, fmt.Errorf("%w: truncated header: %v", ErrBadArtifact, err)
		}
	}
	if nx == 0 || ny == 0 || nz == 0 || pitch <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d cells, pitch %g", ErrBadArtifact, nx, ny, nz, pitch)
	}
	payload := make([]byte, plen)
	if _, err := io.ReadFull(r, payload); err != nil || r.Len() != 0 {
		return nil, fmt.Errorf("%w: payload length mismatch", ErrBadArtifact)
	}

	var packed []byte
	switch codec {
	case codecRaw:
		packed = payload
	case codecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to init zstd decoder: %w", err)
		}
		packed, err = dec.DecodeAll(payload, nil)
		dec.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrBadArtifact, codec)
	}

	cells := int(nx) * int(ny) * int(nz)
	if len(packed) != (cells+7)/8 {
		return nil, fmt.Errorf("%w: %d payload bytes for %d cells", ErrBadArtifact, len(packed), cells)
	}
	if xxhash.Sum64(packed) != checksum {
		return nil, ErrChecksumMismatch
	}

	grid := models.NewVoxelGrid(origin, pitch, int(nx), int(ny), int(nz))
	unpackBits(packed, grid.Cells)
	return grid, nil
}

func packBits(cells []bool) []byte {
	out := make([]byte, (len(cells)+7)/8)
	for i, c := range cells {
		if c {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func unpackBits(packed []byte, cells []bool) {
	for i := range cells {
		cells[i] = packed[i/8]&(1<<(i%8)) != 0
	}
}
