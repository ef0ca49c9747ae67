package backup

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ArchiveCodec wraps an archive stream in a compression layer.
// The tar layer above it is the same for every format.
type ArchiveCodec interface {
	// Format is the config name of the codec ("tar.gz", "tar.zst", ...).
	Format() string
	// Extension is the file name suffix including the leading dot.
	Extension() string
	// Compress wraps w; the caller must Close the returned writer before
	// closing w.
	Compress(w io.Writer) (io.WriteCloser, error)
	// Decompress wraps r for reading back an archive.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// CodecRegistry maps archive format names to codecs
type CodecRegistry struct {
	codecs map[string]ArchiveCodec
}

// NewCodecRegistry creates a registry with all supported formats
func NewCodecRegistry() *CodecRegistry {
	cr := &CodecRegistry{
		codecs: make(map[string]ArchiveCodec),
	}

	// Register available codecs
	for _, codec := range []ArchiveCodec{
		&GzipCodec{},
		&ZstdCodec{},
		&LZ4Codec{},
		&PlainTarCodec{},
	} {
		cr.codecs[codec.Format()] = codec
	}

	return cr
}

// Get returns the codec for the given format
func (cr *CodecRegistry) Get(format string) (ArchiveCodec, error) {
	codec, exists := cr.codecs[format]
	if !exists {
		return nil, NewArchiveError(fmt.Sprintf("unsupported archive format: %s", format), nil)
	}
	return codec, nil
}

// SupportedFormats returns the registered format names
func (cr *CodecRegistry) SupportedFormats() []string {
	formats := make([]string, 0, len(cr.codecs))
	for format := range cr.codecs {
		formats = append(formats, format)
	}
	return formats
}

var defaultCodecRegistry = NewCodecRegistry()

// IsSupportedArchiveFormat reports whether the format has a registered codec
func IsSupportedArchiveFormat(format string) bool {
	_, exists := defaultCodecRegistry.codecs[format]
	return exists
}

// GzipCodec produces gzip-compressed tar archives
type GzipCodec struct{}

func (gc *GzipCodec) Format() string {
	return "tar.gz"
}

func (gc *GzipCodec) Extension() string {
	return ".tar.gz"
}

func (gc *GzipCodec) Compress(w io.Writer) (io.WriteCloser, error) {
	writer, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		return nil, NewArchiveError("failed to create gzip writer", err)
	}
	return writer, nil
}

func (gc *GzipCodec) Decompress(r io.Reader) (io.ReadCloser, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, NewArchiveError("failed to create gzip reader", err)
	}
	return reader, nil
}

// ZstdCodec produces zstd-compressed tar archives
type ZstdCodec struct{}

func (zc *ZstdCodec) Format() string {
	return "tar.zst"
}

func (zc *ZstdCodec) Extension() string {
	return ".tar.zst"
}

func (zc *ZstdCodec) Compress(w io.Writer) (io.WriteCloser, error) {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, NewArchiveError("failed to create zstd encoder", err)
	}
	return encoder, nil
}

func (zc *ZstdCodec) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, NewArchiveError("failed to create zstd decoder", err)
	}
	return decoder.IOReadCloser(), nil
}

// LZ4Codec produces lz4-compressed tar archives
type LZ4Codec struct{}

func (lc *LZ4Codec) Format() string {
	return "tar.lz4"
}

func (lc *LZ4Codec) Extension() string {
	return ".tar.lz4"
}

func (lc *LZ4Codec) Compress(w io.Writer) (io.WriteCloser, error) {
	writer := lz4.NewWriter(w)
	if err := writer.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return nil, NewArchiveError("failed to configure lz4 writer", err)
	}
	return writer, nil
}

func (lc *LZ4Codec) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// PlainTarCodec produces uncompressed tar archives
type PlainTarCodec struct{}

func (pc *PlainTarCodec) Format() string {
	return "tar"
}

func (pc *PlainTarCodec) Extension() string {
	return ".tar"
}

func (pc *PlainTarCodec) Compress(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (pc *PlainTarCodec) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
