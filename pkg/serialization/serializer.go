// Package serialization encodes cached values with a pluggable codec and optional compression.
package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns values into bytes and back.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// CompressionType represents compression algorithms.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionZstd CompressionType = "zstd"
)

// Config holds serialization settings.
type Config struct {
	Codec       Codec
	Compression CompressionType
}

// Serializer runs a value through the codec and then the compressor.
// It is safe for concurrent use.
type Serializer struct {
	config  Config
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSerializer creates a serializer. The zstd encoder and decoder are built once
// and shared by every call.
func NewSerializer(config Config) (*Serializer, error) {
	if config.Codec == nil {
		config.Codec = NewMsgPackCodec()
	}

	s := &Serializer{config: config}

	switch config.Compression {
	case CompressionNone, "":
	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}

		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}

		s.encoder = encoder
		s.decoder = decoder
	default:
		return nil, fmt.Errorf("unsupported compression %q", config.Compression)
	}

	return s, nil
}

// CodecByName returns the codec registered as name ("msgpack" or "json").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "msgpack", "":
		return NewMsgPackCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}

// DefaultSerializer uses MessagePack with zstd compression.
func DefaultSerializer() (*Serializer, error) {
	return NewSerializer(Config{
		Codec:       NewMsgPackCodec(),
		Compression: CompressionZstd,
	})
}

// Serialize encodes and compresses v.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%s encoding failed: %w", s.config.Codec.Name(), err)
	}

	if s.encoder == nil {
		return data, nil
	}

	return s.encoder.EncodeAll(data, nil), nil
}

// Deserialize decompresses data and decodes it into v.
func (s *Serializer) Deserialize(data []byte, v any) error {
	if s.decoder != nil {
		decompressed, err := s.decoder.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("decompression failed: %w", err)
		}

		data = decompressed
	}

	err := s.config.Codec.Decode(data, v)
	if err != nil {
		return fmt.Errorf("%s decoding failed: %w", s.config.Codec.Name(), err)
	}

	return nil
}

// Close releases the zstd decoder goroutines.
func (s *Serializer) Close() {
	if s.decoder != nil {
		s.decoder.Close()
	}

	if s.encoder != nil {
		_ = s.encoder.Close()
	}
}

// JSONCodec implements JSON serialization.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

// MsgPackCodec implements MessagePack serialization.
type MsgPackCodec struct{}

func (c *MsgPackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgPackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgPackCodec) Name() string {
	return "msgpack"
}

func NewJSONCodec() Codec {
	return &JSONCodec{}
}

func NewMsgPackCodec() Codec {
	return &MsgPackCodec{}
}
