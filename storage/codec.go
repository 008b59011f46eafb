package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"hexplanet/core"
	"hexplanet/physics"
	"hexplanet/simulation"
)

// ErrCorrupt is returned when a snapshot blob cannot be decoded.
var ErrCorrupt = errors.New("corrupt snapshot")

const codecVersion = 2

var codecMagic = [4]byte{'H', 'X', 'P', 'S'}

type blobHeader struct {
	Magic       [4]byte
	Version     uint32
	Step        int64
	Cells       uint32
	Plates      uint32
	MantleMass  float64
	CreatedMass float64
}

type blobCell struct {
	Height    float64
	Thickness float64
	Density   float64
	Area      float64
	Plate     int32
	CreatedAt int32
	VelNorth  float64
	VelEast   float64
}

type blobPlate struct {
	VelX, VelY, VelZ       float64
	CarryX, CarryY, CarryZ float64
	NameLen                uint16
}

// Zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// EncodeSnapshot packs the per-cell and per-plate state of a snapshot into
// a compressed blob. Derived plate fields (center, mass, cells) are not
// stored; Restore recomputes them.
func EncodeSnapshot(snap *simulation.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(snap.Cells)*56 + 64)

	hdr := blobHeader{
		Magic:       codecMagic,
		Version:     codecVersion,
		Step:        int64(snap.Step),
		Cells:       uint32(len(snap.Cells)),
		Plates:      uint32(len(snap.Plates)),
		MantleMass:  snap.MantleMass,
		CreatedMass: snap.CreatedMass,
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	cells := make([]blobCell, len(snap.Cells))
	for i, c := range snap.Cells {
		cells[i] = blobCell{
			Height:    c.Height,
			Thickness: c.Thickness,
			Density:   c.Density,
			Area:      c.Area,
			Plate:     int32(c.Plate),
			CreatedAt: int32(c.CreatedAt),
			VelNorth:  c.VelNorth,
			VelEast:   c.VelEast,
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, cells); err != nil {
		return nil, fmt.Errorf("writing cells: %w", err)
	}

	for _, p := range snap.Plates {
		if len(p.Name) > 0xffff {
			return nil, fmt.Errorf("plate %d name too long", p.Index)
		}
		rec := blobPlate{
			VelX: p.Velocity.X, VelY: p.Velocity.Y, VelZ: p.Velocity.Z,
			CarryX: p.Carry.X, CarryY: p.Carry.Y, CarryZ: p.Carry.Z,
			NameLen: uint16(len(p.Name)),
		}
		if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
			return nil, fmt.Errorf("writing plate %d: %w", p.Index, err)
		}
		buf.WriteString(p.Name)
	}

	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

// DecodeSnapshot reverses EncodeSnapshot. Plates come back with index,
// name, velocity and carry only.
func DecodeSnapshot(blob []byte) (*simulation.Snapshot, error) {
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	r := bytes.NewReader(raw)

	var hdr blobHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if hdr.Magic != codecMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, hdr.Magic[:])
	}
	if hdr.Version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, hdr.Version)
	}
	// Each cell record is 56 bytes; refuse counts the blob cannot hold.
	if int64(hdr.Cells)*56 > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d cells in %d bytes", ErrCorrupt, hdr.Cells, r.Len())
	}

	cells := make([]blobCell, hdr.Cells)
	if err := binary.Read(r, binary.LittleEndian, cells); err != nil {
		return nil, fmt.Errorf("%w: cells: %v", ErrCorrupt, err)
	}

	snap := &simulation.Snapshot{
		Step:        int(hdr.Step),
		Cells:       make([]physics.CrustCell, len(cells)),
		Plates:      make([]simulation.Plate, 0, hdr.Plates),
		MantleMass:  hdr.MantleMass,
		CreatedMass: hdr.CreatedMass,
	}
	for i, c := range cells {
		snap.Cells[i] = physics.CrustCell{
			Height:    c.Height,
			Thickness: c.Thickness,
			Density:   c.Density,
			Area:      c.Area,
			Plate:     int(c.Plate),
			CreatedAt: int(c.CreatedAt),
			VelNorth:  c.VelNorth,
			VelEast:   c.VelEast,
		}
	}

	for i := 0; i < int(hdr.Plates); i++ {
		var rec blobPlate
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: plate %d: %v", ErrCorrupt, i, err)
		}
		name := make([]byte, rec.NameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("%w: plate %d name: %v", ErrCorrupt, i, err)
		}
		snap.Plates = append(snap.Plates, simulation.Plate{
			Index:    i,
			Name:     string(name),
			Velocity: core.Vector3{X: rec.VelX, Y: rec.VelY, Z: rec.VelZ},
			Carry:    core.Vector3{X: rec.CarryX, Y: rec.CarryY, Z: rec.CarryZ},
			Center:   core.NoCell,
		})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return snap, nil
}

// Checksum is the hex BLAKE2b-256 digest of a stored blob.
func Checksum(blob []byte) string {
	sum := blake2b.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
