package cloudio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLE
	plyBinaryBE
)

// plyProperty is one scalar vertex property.
type plyProperty struct {
	name string
	size int // bytes in binary encodings
	kind byte
}

// Property kinds.
const (
	kindInt   = 'i'
	kindUint  = 'u'
	kindFloat = 'f'
)

var plyTypes = map[string]plyProperty{
	"char": {size: 1, kind: kindInt}, "int8": {size: 1, kind: kindInt},
	"uchar": {size: 1, kind: kindUint}, "uint8": {size: 1, kind: kindUint},
	"short": {size: 2, kind: kindInt}, "int16": {size: 2, kind: kindInt},
	"ushort": {size: 2, kind: kindUint}, "uint16": {size: 2, kind: kindUint},
	"int": {size: 4, kind: kindInt}, "int32": {size: 4, kind: kindInt},
	"uint": {size: 4, kind: kindUint}, "uint32": {size: 4, kind: kindUint},
	"float": {size: 4, kind: kindFloat}, "float32": {size: 4, kind: kindFloat},
	"double": {size: 8, kind: kindFloat}, "float64": {size: 8, kind: kindFloat},
}

type plyHeader struct {
	format   plyFormat
	vertices int
	props    []plyProperty
	// column of x, y, z, red, green, blue within props
	columns [6]int
}

var plyColumns = [6][]string{
	{"x"}, {"y"}, {"z"},
	{"red", "r", "diffuse_red"},
	{"green", "g", "diffuse_green"},
	{"blue", "b", "diffuse_blue"},
}

func parsePLYHeader(in *bufio.Reader) (plyHeader, error) {
	var h plyHeader
	line, err := in.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return h, fmt.Errorf("not a PLY file")
	}

	element := ""
	vertexSeen := false
	for {
		line, err = in.ReadString('\n')
		if err != nil {
			return h, fmt.Errorf("reading PLY header: %w", err)
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		switch tokens[0] {
		case "format":
			if len(tokens) < 2 {
				return h, fmt.Errorf("malformed format line %q", strings.TrimSpace(line))
			}
			switch tokens[1] {
			case "ascii":
				h.format = plyASCII
			case "binary_little_endian":
				h.format = plyBinaryLE
			case "binary_big_endian":
				h.format = plyBinaryBE
			default:
				return h, fmt.Errorf("unsupported PLY format %s", tokens[1])
			}
		case "comment", "obj_info":
		case "element":
			if len(tokens) != 3 {
				return h, fmt.Errorf("malformed element line %q", strings.TrimSpace(line))
			}
			element = tokens[1]
			if element == "vertex" {
				if vertexSeen {
					return h, fmt.Errorf("duplicate vertex element")
				}
				n, err := strconv.Atoi(tokens[2])
				if err != nil || n < 0 {
					return h, fmt.Errorf("invalid vertex count %s", tokens[2])
				}
				h.vertices = n
				vertexSeen = true
			} else if !vertexSeen {
				return h, fmt.Errorf("element %s precedes the vertex element", element)
			}
		case "property":
			if element != "vertex" {
				continue
			}
			if len(tokens) != 3 {
				return h, fmt.Errorf("unsupported vertex property %q", strings.TrimSpace(line))
			}
			p, ok := plyTypes[tokens[1]]
			if !ok {
				return h, fmt.Errorf("unknown property type %s", tokens[1])
			}
			p.name = tokens[2]
			h.props = append(h.props, p)
		case "end_header":
			if !vertexSeen {
				return h, fmt.Errorf("no vertex element")
			}
			return h, h.resolveColumns()
		default:
			return h, fmt.Errorf("unexpected PLY header line %q", strings.TrimSpace(line))
		}
	}
}

func (h *plyHeader) resolveColumns() error {
	for c, names := range plyColumns {
		h.columns[c] = -1
		for i, p := range h.props {
			for _, n := range names {
				if p.name == n {
					h.columns[c] = i
				}
			}
		}
		if h.columns[c] < 0 {
			if c >= 3 {
				return fmt.Errorf("%w: PLY vertices carry no %s colour", cloud.ErrInvalidInput, names[0])
			}
			return fmt.Errorf("%w: PLY vertices carry no %s coordinate", cloud.ErrInvalidInput, names[0])
		}
	}
	return nil
}

// ReadPLY reads a PLY stream with x, y, z and red, green, blue vertex
// properties. ASCII and both binary encodings are supported; elements after
// the vertex list are ignored.
func ReadPLY(r io.Reader) (*cloud.Cloud, error) {
	in := bufio.NewReader(r)
	h, err := parsePLYHeader(in)
	if err != nil {
		return nil, err
	}

	raw := rawCloud{}
	values := make([]float64, len(h.props))
	for i := 0; i < h.vertices; i++ {
		if h.format == plyASCII {
			err = readPLYASCII(in, values)
		} else {
			err = readPLYBinary(in, h, values)
		}
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		c := h.columns
		raw.add(values[c[0]], values[c[1]], values[c[2]], values[c[3]], values[c[4]], values[c[5]])
	}
	return raw.build()
}

func readPLYASCII(in *bufio.Reader, values []float64) error {
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return err
	}
	tokens := strings.Fields(line)
	if len(tokens) != len(values) {
		return fmt.Errorf("expected %d values, got %d", len(values), len(tokens))
	}
	for j, token := range tokens {
		values[j], err = strconv.ParseFloat(token, 64)
		if err != nil {
			return fmt.Errorf("invalid value %s: %w", token, err)
		}
	}
	return nil
}

func readPLYBinary(in *bufio.Reader, h plyHeader, values []float64) error {
	var order binary.ByteOrder = binary.LittleEndian
	if h.format == plyBinaryBE {
		order = binary.BigEndian
	}
	var buf [8]byte
	for j, p := range h.props {
		b := buf[:p.size]
		if _, err := io.ReadFull(in, b); err != nil {
			return err
		}
		values[j] = decodeScalar(order, p, b)
	}
	return nil
}

func decodeScalar(order binary.ByteOrder, p plyProperty, b []byte) float64 {
	switch p.size {
	case 1:
		if p.kind == kindInt {
			return float64(int8(b[0]))
		}
		return float64(b[0])
	case 2:
		v := order.Uint16(b)
		if p.kind == kindInt {
			return float64(int16(v))
		}
		return float64(v)
	case 4:
		v := order.Uint32(b)
		switch p.kind {
		case kindInt:
			return float64(int32(v))
		case kindFloat:
			return float64(math.Float32frombits(v))
		}
		return float64(v)
	default:
		return math.Float64frombits(order.Uint64(b))
	}
}

// WritePLY writes c as an ASCII PLY with double coordinates and uchar
// colours.
func WritePLY(w io.Writer, c *cloud.Cloud) error {
	_, err := fmt.Fprintf(w, "ply\n"+
		"format ascii 1.0\n"+
		"element vertex %d\n"+
		"property double x\n"+
		"property double y\n"+
		"property double z\n"+
		"property uchar red\n"+
		"property uchar green\n"+
		"property uchar blue\n"+
		"end_header\n", c.Len())
	if err != nil {
		return err
	}
	for i, p := range c.Positions {
		col := c.Colors[i]
		if _, err := fmt.Fprintf(w, "%s %s %s %d %d %d\n",
			formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z), col[0], col[1], col[2]); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
