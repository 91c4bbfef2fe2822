package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

// Algorithm names a compression algorithm usable by the Codec.
type Algorithm string

const (
	Gzip   Algorithm = "gzip"
	Snappy Algorithm = "snappy"
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
)

// DefaultThreshold is the payload size at or below which nothing is compressed.
const DefaultThreshold = 1024

// ParseAlgorithm converts a configured algorithm name into an Algorithm.
// An empty name selects Gzip.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(name); a {
	case "":
		return Gzip, nil
	case Gzip, Snappy, LZ4, Zstd:
		return a, nil
	}
	return "", fmt.Errorf("%w: unsupported compression lib %q", cache.ErrConfiguration, name)
}

type prefix struct {
	magic []byte
	algo  Algorithm
}

// Stored payloads are identified by their leading bytes. The 5-byte forms are
// a legacy record format and are only ever decoded.
var (
	current = map[Algorithm][]byte{
		Gzip:   []byte("gz\x1f\x8b"),
		Snappy: []byte("sn\x1f\x8b"),
		LZ4:    []byte("l4\x1f\x8b"),
		Zstd:   []byte("zs\x1f\x8b"),
	}
	known = []prefix{
		{current[Gzip], Gzip},
		{current[Snappy], Snappy},
		{current[LZ4], LZ4},
		{current[Zstd], Zstd},
		{[]byte("gz:\x1f\x8b"), Gzip},
		{[]byte("sn:\x1f\x8b"), Snappy},
		{[]byte("zc:\x1f\x8b"), Gzip},
	}
)

// Codec compresses payloads above a size threshold and transparently
// decompresses anything carrying a known prefix.
type Codec struct {
	algo      Algorithm
	threshold int
}

// New creates a Codec for algo. Payloads of threshold bytes or fewer are stored as is.
func New(algo Algorithm, threshold int) (*Codec, error) {
	if _, ok := current[algo]; !ok {
		return nil, fmt.Errorf("%w: unsupported compression lib %q", cache.ErrConfiguration, algo)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: negative compression threshold %d", cache.ErrConfiguration, threshold)
	}
	return &Codec{algo: algo, threshold: threshold}, nil
}

func (c *Codec) Algorithm() Algorithm { return c.algo }

// Encode compresses payload at level. Level 0 disables compression, except
// for payloads that already start with a known prefix: those are always
// compressed so Decode gives them back unchanged.
func (c *Codec) Encode(payload []byte, level int) ([]byte, error) {
	if hasKnownPrefix(payload) {
		if level <= 0 {
			level = 1
		}
	} else if level <= 0 || len(payload) <= c.threshold {
		return payload, nil
	}
	var (
		out []byte
		err error
	)
	switch c.algo {
	case Gzip:
		out, err = compressZlib(payload, level)
	case Snappy:
		out = snappy.Encode(nil, payload)
	case LZ4:
		out, err = compressLZ4(payload, level)
	case Zstd:
		out, err = compressZstd(payload, level)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", cache.ErrCompression, c.algo, err)
	}
	magic := current[c.algo]
	encoded := make([]byte, 0, len(magic)+len(out))
	encoded = append(encoded, magic...)
	return append(encoded, out...), nil
}

func hasKnownPrefix(data []byte) bool {
	for _, p := range known {
		if bytes.HasPrefix(data, p.magic) {
			return true
		}
	}
	return false
}

// Decode reverses Encode for any supported algorithm. Data without a known
// prefix is returned unchanged.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	for _, p := range known {
		if !bytes.HasPrefix(data, p.magic) {
			continue
		}
		body := data[len(p.magic):]
		var (
			out []byte
			err error
		)
		switch p.algo {
		case Gzip:
			out, err = decompressZlib(body)
		case Snappy:
			out, err = snappy.Decode(nil, body)
		case LZ4:
			out, err = decompressLZ4(body)
		case Zstd:
			out, err = zstdDecoder.DecodeAll(body, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", cache.ErrCorruptRecord, p.algo, err)
		}
		return out, nil
	}
	return data, nil
}

func compressZlib(data []byte, level int) ([]byte, error) {
	if level > zlib.BestCompression {
		level = zlib.BestCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// LZ4 uses the frame format so the uncompressed size travels with the data.
func compressLZ4(data []byte, level int) ([]byte, error) {
	if level > len(lz4Levels) {
		level = len(lz4Levels)
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4Levels[level-1])); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// zstd encoders are cached per level; zstd.Encoder and zstd.Decoder are safe
// for concurrent use.
var (
	zstdDecoder *zstd.Decoder

	zstdMu       sync.Mutex
	zstdEncoders = map[int]*zstd.Encoder{}
)

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte, level int) ([]byte, error) {
	zstdMu.Lock()
	enc, ok := zstdEncoders[level]
	if !ok {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			zstdMu.Unlock()
			return nil, err
		}
		zstdEncoders[level] = enc
	}
	zstdMu.Unlock()
	return enc.EncodeAll(data, nil), nil
}
