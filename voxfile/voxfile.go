// Package voxfile reads MagicaVoxel .vox models so they can be placed into a
// voxel world.
package voxfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gekko3d/voxmesh/volume"
)

const MagicNumber = "VOX "

var ErrInvalid = errors.New("voxfile: not a valid VOX file")

type Voxel struct {
	X, Y, Z, ColorIndex byte
}

type Model struct {
	SizeX, SizeY, SizeZ uint32
	Voxels              []Voxel
}

type Palette [256][4]byte // RGBA

type Material struct {
	ID       int
	Weight   float32
	Property map[string]string
}

type File struct {
	Version   int
	Models    []Model
	Palette   Palette
	Materials []Material
}

// Cell is one voxel of a model placed in world space.
type Cell struct {
	Pos        volume.Coord
	ColorIndex byte
}

// Cells returns the model's voxels offset by origin. Coordinates are taken as
// stored in the file.
func (m *Model) Cells(origin volume.Coord) []Cell {
	out := make([]Cell, len(m.Voxels))
	for i, v := range m.Voxels {
		out[i] = Cell{
			Pos:        origin.Add(volume.Coord{int(v.X), int(v.Y), int(v.Z)}),
			ColorIndex: v.ColorIndex,
		}
	}
	return out
}

func Load(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	vf, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return vf, nil
}

func Decode(r io.Reader) (*File, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != MagicNumber {
		return nil, ErrInvalid
	}

	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}

	vf := &File{
		Version: int(version),
		Palette: defaultPalette(),
	}

	// MAIN has no content of its own; its children follow inline, so every
	// chunk is read flat.
	nextModel := 0
	for {
		var chunkID [4]byte
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		var chunkSize, childrenSize int32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &childrenSize); err != nil {
			return nil, err
		}
		if chunkSize < 0 || childrenSize < 0 {
			return nil, fmt.Errorf("%w: negative size in %s chunk", ErrInvalid, chunkID[:])
		}

		chunkData := make([]byte, chunkSize)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return nil, err
		}

		switch string(chunkID[:]) {
		case "MAIN":
			continue
		case "PACK":
			if len(chunkData) < 4 {
				return nil, fmt.Errorf("%w: PACK chunk too small", ErrInvalid)
			}
			if n := binary.LittleEndian.Uint32(chunkData[:4]); n > 0 {
				vf.Models = make([]Model, n)
			}
		case "SIZE":
			if len(chunkData) < 12 {
				return nil, fmt.Errorf("%w: SIZE chunk too small", ErrInvalid)
			}
			// Without PACK every SIZE starts a new model.
			if nextModel >= len(vf.Models) {
				vf.Models = append(vf.Models, Model{})
			}
			model := &vf.Models[nextModel]
			nextModel++
			model.SizeX = binary.LittleEndian.Uint32(chunkData[0:4])
			model.SizeY = binary.LittleEndian.Uint32(chunkData[4:8])
			model.SizeZ = binary.LittleEndian.Uint32(chunkData[8:12])
		case "XYZI":
			if nextModel == 0 {
				return nil, fmt.Errorf("%w: XYZI before SIZE", ErrInvalid)
			}
			if len(chunkData) < 4 {
				return nil, fmt.Errorf("%w: XYZI chunk too small", ErrInvalid)
			}
			model := &vf.Models[nextModel-1]
			numVoxels := int(binary.LittleEndian.Uint32(chunkData[:4]))
			if 4+numVoxels*4 > len(chunkData) {
				return nil, fmt.Errorf("%w: XYZI chunk data overflow", ErrInvalid)
			}
			model.Voxels = make([]Voxel, numVoxels)
			for i := range model.Voxels {
				offset := 4 + i*4
				model.Voxels[i] = Voxel{
					X:          chunkData[offset],
					Y:          chunkData[offset+1],
					Z:          chunkData[offset+2],
					ColorIndex: chunkData[offset+3],
				}
			}
		case "RGBA":
			// Entry i of the chunk is color index i+1.
			for i := 0; i < 255 && i*4+3 < len(chunkData); i++ {
				copy(vf.Palette[i+1][:], chunkData[i*4:i*4+4])
			}
		case "MATL":
			mat, err := parseMaterial(chunkData)
			if err != nil {
				return nil, err
			}
			vf.Materials = append(vf.Materials, mat)
		}
	}

	return vf, nil
}

func parseMaterial(data []byte) (Material, error) {
	mat := Material{
		Property: make(map[string]string),
	}
	r := bytes.NewReader(data)
	readInt := func() (int, error) {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, fmt.Errorf("%w: truncated MATL chunk", ErrInvalid)
		}
		return int(v), nil
	}
	readString := func() (string, error) {
		n, err := readInt()
		if err != nil {
			return "", err
		}
		if n < 0 || n > r.Len() {
			return "", fmt.Errorf("%w: MATL string of %d bytes", ErrInvalid, n)
		}
		buf := make([]byte, n)
		_, _ = io.ReadFull(r, buf)
		return string(buf), nil
	}

	var err error
	if mat.ID, err = readInt(); err != nil {
		return mat, err
	}
	pairs, err := readInt()
	if err != nil {
		return mat, err
	}
	for i := 0; i < pairs; i++ {
		key, err := readString()
		if err != nil {
			return mat, err
		}
		value, err := readString()
		if err != nil {
			return mat, err
		}
		switch key {
		case "_weight":
			var weight float32
			if _, err := fmt.Sscanf(value, "%f", &weight); err != nil {
				return mat, fmt.Errorf("%w: _weight %q: %w", ErrInvalid, value, err)
			}
			mat.Weight = weight
		default:
			mat.Property[key] = value
		}
	}
	return mat, nil
}

func defaultPalette() Palette {
	var palette Palette
	for i := range palette {
		palette[i] = [4]byte{255, 255, 255, 255}
	}
	return palette
}
