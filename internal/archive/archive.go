// Package archive is a reference bundle.Decoder for bundles packed as plain
// tar streams, one tar entry per asset. Game builds plug in the engine's own
// decoder instead; this one keeps the CLI and the tests self-contained.
//
// Assets are addressed by their entry path and, when unambiguous, by the
// file name without its extension, so "ui/Hero.prefab" is reachable as both
// "ui/Hero.prefab" and "Hero".
package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
)

// Decoder implements bundle.Decoder for tar archives.
type Decoder struct{}

// Decode implements bundle.Decoder.
func (Decoder) Decode(ctx context.Context, name string, data []byte) (bundle.Handle, error) {
	tr := tar.NewReader(bytes.NewReader(data))
	h := &Handle{name: name, assets: make(map[string][]byte)}
	aliases := make(map[string][]string)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bundle %s: reading archive: %w", name, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("bundle %s: reading asset %s: %w", name, hdr.Name, err)
		}
		h.assets[hdr.Name] = body
		h.names = append(h.names, hdr.Name)

		base := path.Base(hdr.Name)
		alias := strings.TrimSuffix(base, path.Ext(base))
		aliases[alias] = append(aliases[alias], hdr.Name)
	}

	for alias, targets := range aliases {
		if _, exists := h.assets[alias]; exists || len(targets) != 1 {
			continue
		}
		h.assets[alias] = h.assets[targets[0]]
	}
	sort.Strings(h.names)
	return h, nil
}

// Handle is a decoded tar bundle. Assets are returned as []byte.
type Handle struct {
	name string

	mu     sync.RWMutex
	assets map[string][]byte
	names  []string
}

// LoadAsset implements bundle.Handle.
func (h *Handle) LoadAsset(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, ok := h.assets[name]
	if !ok {
		return nil, false
	}
	return data, true
}

// AssetNames implements bundle.Handle.
func (h *Handle) AssetNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Unload implements bundle.Handle. Byte slices handed out earlier stay valid
// in both modes; there are no engine objects to invalidate.
func (h *Handle) Unload(bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.assets = map[string][]byte{}
	h.names = nil
}

// Pack writes assets into a tar stream readable by Decoder. Entries are
// written in name order.
func Pack(assets map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(assets))
	for n := range assets {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, n := range names {
		data := assets[n]
		hdr := &tar.Header{Name: n, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("writing header for %s: %w", n, err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, fmt.Errorf("writing asset %s: %w", n, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
