// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLineLength bounds a decoded line when no limit is given.
const DefaultMaxLineLength = 64 * 1024

// ErrLineTooLong is the sentinel error wrapped by LineTooLongError.
var ErrLineTooLong = errors.New("line too long")

type (
	// LinesCodec reads and writes newline terminated text. A trailing "\r" is
	// stripped from decoded lines.
	LinesCodec struct {
		maxLength int
	}

	// LineTooLongError is returned when an inbound line exceeds the configured limit.
	LineTooLongError struct {
		Limit int
	}
)

// Lines returns a line codec accepting lines up to maxLength bytes,
// or DefaultMaxLineLength when maxLength is not positive.
func Lines(maxLength int) LinesCodec {
	if maxLength <= 0 {
		maxLength = DefaultMaxLineLength
	}
	return LinesCodec{maxLength: maxLength}
}

// Decode returns the next line without its terminator. A final unterminated
// line is returned before io.EOF.
func (c LinesCodec) Decode(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		// Allow room for a "\r\n" terminator while the line is still incomplete.
		if len(line) > c.limit()+2 {
			return "", &LineTooLongError{Limit: c.limit()}
		}
		switch {
		case err == nil, errors.Is(err, io.EOF) && len(line) > 0:
			return c.finish(line)
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return "", err
		}
	}
}

// Encode writes msg followed by a newline.
func (c LinesCodec) Encode(w *bufio.Writer, msg string) error {
	if len(msg) > c.limit() {
		return &LineTooLongError{Limit: c.limit()}
	}
	if strings.ContainsRune(msg, '\n') {
		return fmt.Errorf("encode line: message contains a newline")
	}
	if _, err := w.WriteString(msg); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func (c LinesCodec) limit() int {
	if c.maxLength <= 0 {
		return DefaultMaxLineLength
	}
	return c.maxLength
}

func (c LinesCodec) finish(line []byte) (string, error) {
	s := strings.TrimSuffix(string(line), "\n")
	s = strings.TrimSuffix(s, "\r")
	if len(s) > c.limit() {
		return "", &LineTooLongError{Limit: c.limit()}
	}
	return s, nil
}

// Error implements the error interface for LineTooLongError.
func (e *LineTooLongError) Error() string {
	return fmt.Sprintf("line exceeds %d bytes", e.Limit)
}

// Unwrap returns ErrLineTooLong for errors.Is() compatibility.
func (e *LineTooLongError) Unwrap() error { return ErrLineTooLong }
