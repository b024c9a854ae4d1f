package httpx

//
// Streaming downloads
//

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/irl/ooni-probe/internal/iox"
)

// ErrTruncatedBody indicates that we received fewer bytes than
// declared by the Content-Length header.
var ErrTruncatedBody = errors.New("httpx: truncated response body")

// DownloadToFile streams the response body for resourcePath into the
// file at destPath, creating the destination directory if needed. We
// write into a temporary file inside the destination directory and
// rename it into place, so a concurrent reader never observes a
// partially written payload. When the server declares a Content-Length
// we require the body to be that long; otherwise we accept a body of
// unknown length.
func (c *APIClient) DownloadToFile(ctx context.Context, resourcePath, destPath string) error {
	return c.Do(ctx, "GET", resourcePath, nil, func(response *http.Response) error {
		if response.StatusCode >= 400 {
			return &StatusError{Code: response.StatusCode}
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
			return err
		}
		tmpfile, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".tmp-*")
		if err != nil {
			return err
		}
		tmppath := tmpfile.Name()
		count, err := iox.CopyContext(ctx, tmpfile, response.Body)
		if closeErr := tmpfile.Close(); err == nil {
			err = closeErr
		}
		if err == nil && response.ContentLength >= 0 && count != response.ContentLength {
			err = ErrTruncatedBody
		}
		if err != nil {
			os.Remove(tmppath)
			return err
		}
		c.Logger.Debugf("httpx: downloaded %d bytes to %s", count, destPath)
		return os.Rename(tmppath, destPath)
	})
}
