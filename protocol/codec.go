package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed marks a complete line that is not valid JSON for the target
// type. The stream stays usable after it.
var ErrMalformed = errors.New("protocol: malformed line")

// ReadRequest reads a single JSON request from the given reader.
// The JSON must be terminated by a newline.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	var req Request
	if err := readLine(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// WriteRequest encodes and writes a Request to the given writer.
func WriteRequest(w io.Writer, req *Request) error {
	return writeLine(w, req)
}

// ReadResponse reads a single JSON response from the reader.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	var resp Response
	if err := readLine(r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WriteResponse encodes and writes a Response to the writer.
func WriteResponse(w io.Writer, resp *Response) error {
	return writeLine(w, resp)
}

// DecodeData converts a generic Data payload (as produced by json.Unmarshal
// into interface{}) into the typed struct out.
func DecodeData(data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	return nil
}

// readLine uses the caller's buffered reader so that pipelined lines on a
// long-lived connection are not lost between calls.
func readLine(r *bufio.Reader, out interface{}) error {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	if err := json.Unmarshal(line, out); err != nil {
		return fmt.Errorf("decode error: %w: %w", ErrMalformed, err)
	}
	return nil
}

func writeLine(w io.Writer, v interface{}) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}
	bytes = append(bytes, '\n')
	_, err = w.Write(bytes)
	return err
}
