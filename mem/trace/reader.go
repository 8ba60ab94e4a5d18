package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/mem/cache/addressing"
)

// A Record is one address of a trace, with the text it was read from.
type Record struct {
	Hex     string
	Address uint64
}

// A FormatError reports a trace that does not follow the fixed-width
// hexadecimal format. Line is 1-based; it is 0 when the whole trace is at
// fault.
type FormatError struct {
	Line   int
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line == 0 {
		return "malformed trace: " + e.Reason
	}

	return fmt.Sprintf("malformed trace line %d %q: %s",
		e.Line, e.Text, e.Reason)
}

// LoadFile reads the trace stored at path. See Parse for the format.
func LoadFile(path string, addressWidth int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	return Parse(f, addressWidth)
}

// Parse reads one address per line. Each line holds exactly as many
// hexadecimal digits as the address width needs (4 for 16 bits), without a
// 0x prefix. Lines may end with "\r\n". A trace without addresses is an
// error.
func Parse(r io.Reader, addressWidth int) ([]Record, error) {
	if addressWidth == 0 {
		addressWidth = addressing.DefaultAddressWidth
	}

	digits := (addressWidth + 3) / 4
	records := []Record{}
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		text := strings.TrimSuffix(scanner.Text(), "\r")

		record, err := parseRecord(text, digits, addressWidth)
		if err != nil {
			err.Line = lineNum
			return nil, err
		}

		records = append(records, record)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	if len(records) == 0 {
		return nil, &FormatError{Reason: "trace is empty"}
	}

	return records, nil
}

func parseRecord(text string, digits, addressWidth int) (Record, *FormatError) {
	if len(text) != digits {
		return Record{}, &FormatError{
			Text:   text,
			Reason: fmt.Sprintf("want %d hex digits, got %d", digits, len(text)),
		}
	}

	addr, err := strconv.ParseUint(text, 16, 64)
	if err != nil {
		return Record{}, &FormatError{Text: text, Reason: "not hexadecimal"}
	}

	if addressWidth < 64 && addr>>addressWidth != 0 {
		return Record{}, &FormatError{
			Text:   text,
			Reason: fmt.Sprintf("exceeds %d-bit address width", addressWidth),
		}
	}

	return Record{Hex: text, Address: addr}, nil
}

// Addresses extracts the addresses of the records, in order.
func Addresses(records []Record) []uint64 {
	addrs := make([]uint64, len(records))
	for i, r := range records {
		addrs[i] = r.Address
	}

	return addrs
}
