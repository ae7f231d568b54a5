package proxy

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/gddo/httputil/header"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

// decoderFunc returns a reader that decodes the content of r.
type decoderFunc func(r io.Reader) (io.Reader, error)

var decoders = map[string]decoderFunc{
	"gzip":    newGzipReader,
	"x-gzip":  newGzipReader,
	"deflate": newZlibReader,
	"br":      newBrotliReader,
	"zstd":    newZstdReader,
}

// decodeBody returns the body of response with its content codings removed.
//
// Content-Encoding is never relayed to the client, so any coding that can be
// decoded is decoded here. If the response uses no coding, or uses a coding
// that is not supported, the body is returned as-is and decoded is false.
func decodeBody(response *http.Response) (body io.ReadCloser, decoded bool) {
	var codings []string
	for _, coding := range header.ParseList(response.Header, "Content-Encoding") {
		coding = strings.ToLower(coding)
		if coding == "identity" {
			continue
		}
		if _, ok := decoders[coding]; !ok {
			return response.Body, false
		}
		codings = append(codings, coding)
	}

	if len(codings) == 0 {
		return response.Body, false
	}

	result := &decodedBody{
		Reader:  response.Body,
		closers: []io.Closer{response.Body},
	}

	// Codings are listed in the order they were applied.
	for i := len(codings) - 1; i >= 0; i-- {
		layer := &lazyDecoder{
			source:    result.Reader,
			newReader: decoders[codings[i]],
		}
		result.Reader = layer
		result.closers = append(result.closers, layer)
	}

	return result, true
}

// decodedBody is a response body wrapped in one or more decoders.
type decodedBody struct {
	io.Reader
	closers []io.Closer
}

// Close closes the decoders, outermost first, then the underlying body.
func (body *decodedBody) Close() error {
	var err error
	for i := len(body.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, body.closers[i].Close())
	}

	return err
}

// lazyDecoder defers creating its decoder until the first read, so that empty
// bodies are not treated as malformed and no upstream read happens before the
// response headers are relayed.
type lazyDecoder struct {
	source    io.Reader
	newReader decoderFunc
	reader    io.Reader
	err       error
}

func (d *lazyDecoder) Read(data []byte) (int, error) {
	if d.reader == nil && d.err == nil {
		d.reader, d.err = d.newReader(d.source)
	}

	if d.err != nil {
		return 0, d.err
	}

	return d.reader.Read(data)
}

func (d *lazyDecoder) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

func newGzipReader(r io.Reader) (io.Reader, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}

	return reader, nil
}

func newZlibReader(r io.Reader) (io.Reader, error) {
	reader, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}

	return reader, nil
}

func newBrotliReader(r io.Reader) (io.Reader, error) {
	return brotli.NewReader(r), nil
}

func newZstdReader(r io.Reader) (io.Reader, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}

	return decoder.IOReadCloser(), nil
}
