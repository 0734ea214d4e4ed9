package cloudio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/pointpca2/internal/cloud"
)

// commentChar starts a comment in delimited text files.
const commentChar = "#"

// ReadText reads one point per line as six numeric columns x y z r g b,
// separated by commas and/or whitespace. Blank lines and # comments are
// skipped; a first line that does not parse as numbers is taken as a
// column header.
func ReadText(r io.Reader) (*cloud.Cloud, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	raw := rawCloud{}
	var vals [6]float64
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line, _, _ := strings.Cut(scanner.Text(), commentChar)
		tokens := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\r'
		})
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) != len(vals) {
			if len(raw.positions) == 0 && !numeric(tokens[0]) {
				continue
			}
			return nil, fmt.Errorf("%w: line %d has %d columns, want x y z r g b", cloud.ErrInvalidInput, lineNo, len(tokens))
		}
		var err error
		for j, token := range tokens {
			vals[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				break
			}
		}
		if err != nil {
			if len(raw.positions) == 0 && !numeric(tokens[0]) {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		raw.add(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raw.build()
}

func numeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// WriteText writes c as x y z r g b lines joined by sep.
func WriteText(w io.Writer, c *cloud.Cloud, sep string) error {
	for i, p := range c.Positions {
		col := c.Colors[i]
		fields := []string{
			formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z),
			strconv.Itoa(int(col[0])), strconv.Itoa(int(col[1])), strconv.Itoa(int(col[2])),
		}
		if _, err := io.WriteString(w, strings.Join(fields, sep)+"\n"); err != nil {
			return err
		}
	}
	return nil
}
