package pronet

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"
)

// Format selects the on-disk layout of saved embeddings
type Format string

const (
	// FormatText is the SMORe text layout: "<rows> <dim>" then one
	// "name v1 v2 ..." line per vertex.
	FormatText Format = "text"
	// FormatBinary16 stores values as little-endian IEEE-754 half floats.
	FormatBinary16 Format = "binary16"
)

var binaryMagic = [4]byte{'L', 'N', 'E', '1'}

// maxBinaryDim bounds the row width accepted by ReadBinary16
const maxBinaryDim = 1 << 16

var (
	// ErrBadFormat is returned when reading a file that is not binary16 output.
	ErrBadFormat = errors.New("pronet: not a binary16 embedding file")
	// ErrNameTooLong is returned for vertex names binary16 cannot length-prefix.
	ErrNameTooLong = errors.New("pronet: vertex name longer than 65535 bytes")
)

// WriteEmbeddings writes the first len(names) rows of table in the given format
func WriteEmbeddings(w io.Writer, format Format, names []string, table mat.Matrix) error {
	switch format {
	case FormatText, "":
		return writeText(w, names, table)
	case FormatBinary16:
		return writeBinary16(w, names, table)
	default:
		return fmt.Errorf("pronet: unknown embedding format %q", format)
	}
}

func writeText(w io.Writer, names []string, table mat.Matrix) error {
	_, dim := table.Dims()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%d %d\n", len(names), dim)
	for vid, name := range names {
		fmt.Fprintf(bw, "%s", name)
		for d := 0; d < dim; d++ {
			fmt.Fprintf(bw, " %.6f", table.At(vid, d))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func writeBinary16(w io.Writer, names []string, table mat.Matrix) error {
	for vid, name := range names {
		if len(name) > math.MaxUint16 {
			return fmt.Errorf("%w: vertex %d", ErrNameTooLong, vid)
		}
	}

	_, dim := table.Dims()
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(binaryMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, [2]uint32{uint32(len(names)), uint32(dim)}); err != nil {
		return err
	}

	row := make([]uint16, dim)
	for vid, name := range names {
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(name))); err != nil {
			return err
		}
		if _, err := bw.WriteString(name); err != nil {
			return err
		}
		for d := range row {
			row[d] = float16.Fromfloat32(float32(table.At(vid, d))).Bits()
		}
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadBinary16 reads embeddings written with FormatBinary16
func ReadBinary16(r io.Reader) ([]string, *mat.Dense, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if magic != binaryMagic {
		return nil, nil, ErrBadFormat
	}
	var header [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	rows, dim := int(header[0]), int(header[1])
	if rows == 0 || dim == 0 {
		return nil, nil, fmt.Errorf("%w: empty table %dx%d", ErrBadFormat, rows, dim)
	}
	if dim > maxBinaryDim {
		return nil, nil, fmt.Errorf("%w: dimension %d", ErrBadFormat, dim)
	}

	// rows come from the header; grow with the data actually read
	names := make([]string, 0, min(rows, 1<<16))
	data := make([]float64, 0, min(rows*dim, 1<<20))
	raw := make([]uint16, dim)
	for i := 0; i < rows; i++ {
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		names = append(names, string(name))
		if err := binary.Read(br, binary.LittleEndian, raw); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		for _, bits := range raw {
			data = append(data, float64(float16.Frombits(bits).Float32()))
		}
	}
	return names, mat.NewDense(rows, dim, data), nil
}
