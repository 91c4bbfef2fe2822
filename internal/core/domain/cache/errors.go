package cache

import "errors"

var (
	// ErrConfiguration reports a missing or invalid construction parameter.
	ErrConfiguration = errors.New("cache configuration error")
	// ErrConnection reports exhausted connect retries or a rejected credential.
	ErrConnection = errors.New("cache connection error")
	// ErrCompression reports a compressor failure while encoding.
	ErrCompression = errors.New("cache compression error")
	// ErrCorruptRecord reports a payload with a known prefix that failed to decompress.
	ErrCorruptRecord = errors.New("corrupt cache record")
	// ErrUnsupportedOperation is returned for negated tag queries without id tracking.
	ErrUnsupportedOperation = errors.New("unsupported cache operation")
	// ErrInvalidMode is returned by Clean for an unknown mode.
	ErrInvalidMode = errors.New("invalid clean mode")
	// ErrInvalidTag is returned for tags that cannot be stored in the joined tag field.
	ErrInvalidTag = errors.New("invalid cache tag")
)
