package bundle

import "context"

// Handle is the in-memory content of one loaded bundle. It is owned by the
// cache entry that stored it and is never shared between entries.
type Handle interface {
	// LoadAsset returns the named asset, or false when the bundle does not
	// contain it. The concrete type of the value is decoder specific.
	LoadAsset(name string) (any, bool)

	// AssetNames lists the assets packed in the bundle.
	AssetNames() []string

	// Unload frees the bundle. When unloadAllObjects is true, assets already
	// extracted from the bundle are invalidated as well; otherwise only the
	// backing archive is released.
	Unload(unloadAllObjects bool)
}

// Decoder turns the raw bytes of a fetched bundle into a Handle. The archive
// format is owned by the decoder; the loader never inspects the bytes.
type Decoder interface {
	Decode(ctx context.Context, name string, data []byte) (Handle, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(ctx context.Context, name string, data []byte) (Handle, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(ctx context.Context, name string, data []byte) (Handle, error) {
	return f(ctx, name, data)
}
