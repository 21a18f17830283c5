package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Reader frames an input stream into lines.
type Reader struct {
	br *bufio.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadLine returns the next line without its trailing "\n" or "\r\n".
// A final unterminated line is returned with a nil error; the call after it
// returns io.EOF. A stream that ends with nothing buffered returns io.EOF.
func (r *Reader) ReadLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return bytes.TrimRight(line, "\r"), nil
		}
		return nil, err
	}
	line = line[:len(line)-1]
	return bytes.TrimRight(line, "\r"), nil
}

// ReadRequest reads and decodes the next request. A *DecodeError means the
// line was consumed but malformed; the stream is still usable.
func (r *Reader) ReadRequest() (Request, error) {
	line, err := r.ReadLine()
	if err != nil {
		return Request{}, err
	}
	return DecodeRequest(line)
}

// ReadResponse reads and decodes the next response.
func (r *Reader) ReadResponse() (Response, error) {
	line, err := r.ReadLine()
	if err != nil {
		return Response{}, err
	}
	return DecodeResponse(line)
}

// Writer writes complete lines to an output stream.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteResponse encodes resp and writes the whole line.
func (w *Writer) WriteResponse(resp Response) error {
	b, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return writeFull(w.w, b)
}

// WriteRequest encodes req and writes the whole line.
func (w *Writer) WriteRequest(req Request) error {
	b, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return writeFull(w.w, b)
}

// writeFull retries short writes until b is flushed or the writer fails.
func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
