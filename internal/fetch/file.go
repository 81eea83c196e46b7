package fetch

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileGetter reads bundles from the local file system. It accepts
// `file://` URIs and plain paths.
type FileGetter struct{}

// Get implements Getter.
func (FileGetter) Get(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := uri
	if strings.HasPrefix(uri, "file:") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, &TransportError{URI: uri, Kind: KindNetwork, Err: err}
		}
		path = u.Path
		if u.Host != "" && u.Host != "localhost" {
			path = "//" + u.Host + u.Path
		}
	}

	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &TransportError{URI: uri, Kind: KindHTTPStatus, StatusCode: 404, Err: err}
		}
		return nil, &TransportError{URI: uri, Kind: KindNetwork, Err: err}
	}
	return data, nil
}

// FileURI converts a local path to a file:// URI.
func FileURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
