// Package iox contains io extensions.
package iox

import (
	"context"
	"io"
)

// ReadAllContext is like io.ReadAll except that the read happens in a
// background goroutine and we return early when the given context is
// cancelled. In the latter case the goroutine keeps draining r and we
// discard its result; closing the connection bound to r, if possible,
// is what actually stops it.
func ReadAllContext(ctx context.Context, r io.Reader) ([]byte, error) {
	datach, errch := make(chan []byte, 1), make(chan error, 1) // buffers
	go func() {
		data, err := io.ReadAll(r)
		if err != nil {
			errch <- err
			return
		}
		datach <- data
	}()
	select {
	case data := <-datach:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errch:
		return nil, err
	}
}

// CopyContext is like io.Copy except that the copy happens in a
// background goroutine and we return early when the given context is
// cancelled. Same caveats of ReadAllContext regarding the temporary
// leaking of the background goroutine.
func CopyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	countch, errch := make(chan int64, 1), make(chan error, 1) // buffers
	go func() {
		count, err := io.Copy(dst, src)
		if err != nil {
			errch <- err
			return
		}
		countch <- count
	}()
	select {
	case count := <-countch:
		return count, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-errch:
		return 0, err
	}
}

// MockableReader allows to mock any io.Reader.
type MockableReader struct {
	MockRead func(b []byte) (int, error)
}

var _ io.Reader = &MockableReader{}

// Read implements io.Reader.Read.
func (r *MockableReader) Read(b []byte) (int, error) {
	return r.MockRead(b)
}
