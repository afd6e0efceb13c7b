package jsonutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxLine is the longest line a JSONL reader should try to decode. Record
// lines carry two paths, so anything longer is damage. ScanLines still
// delivers longer lines so callers can keep them.
const MaxLine = 4 << 20

// ScanLines calls fn for every non-blank line of r with its 1-based line
// number. Lines of any length are delivered. The slice passed to fn is only
// valid during the call.
func ScanLines(r io.Reader, fn func(lineNo int, line []byte) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	n := 0
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			n++
			line = bytes.TrimRight(bytes.TrimSuffix(line, []byte("\n")), "\r")
			if len(bytes.TrimSpace(line)) > 0 {
				if ferr := fn(n, line); ferr != nil {
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", n+1, err)
		}
	}
}

// MarshalLine encodes v as compact JSON followed by a newline.
func MarshalLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
