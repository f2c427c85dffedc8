package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// Envelope layout, big endian:
//
//	magic[2] version[1] flags[1] createdAt[8] expiresAt[8] catLen[1] category body
const (
	envelopeVersion = 1
	flagCompressed  = 1 << 0
	headerFixedLen  = 2 + 1 + 1 + 8 + 8 + 1
)

var (
	envelopeMagic = [2]byte{'S', 'R'}

	errCorrupt = errors.New("cache: corrupt entry")
)

// stored is the immutable encoded form of an entry held by both layers.
type stored struct {
	category  types.Category
	createdAt time.Time
	expiresAt time.Time
	flags     byte
	raw       []byte // full envelope
	bodyAt    int
}

func (s *stored) compressed() bool { return s.flags&flagCompressed != 0 }

func (s *stored) size() int64 { return int64(len(s.raw)) }

func (s *stored) expired(now time.Time) bool { return !now.Before(s.expiresAt) }

type codec struct {
	enc       *zstd.Encoder
	dec       *zstd.Decoder
	threshold int
}

func newCodec(threshold int) (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec, threshold: threshold}, nil
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *codec) encode(category types.Category, body []byte, createdAt, expiresAt time.Time) *stored {
	var flags byte
	if len(body) > c.threshold {
		body = c.enc.EncodeAll(body, make([]byte, 0, len(body)/2))
		flags |= flagCompressed
	}

	raw := make([]byte, headerFixedLen+len(category)+len(body))
	copy(raw[0:2], envelopeMagic[:])
	raw[2] = envelopeVersion
	raw[3] = flags
	binary.BigEndian.PutUint64(raw[4:12], uint64(createdAt.UnixNano()))
	binary.BigEndian.PutUint64(raw[12:20], uint64(expiresAt.UnixNano()))
	raw[20] = byte(len(category))
	copy(raw[headerFixedLen:], category)
	bodyAt := headerFixedLen + len(category)
	copy(raw[bodyAt:], body)

	return &stored{
		category:  category,
		createdAt: createdAt,
		expiresAt: expiresAt,
		flags:     flags,
		raw:       raw,
		bodyAt:    bodyAt,
	}
}

// parse validates an envelope read from the distributed layer.
func parse(raw []byte) (*stored, error) {
	if len(raw) < headerFixedLen {
		return nil, fmt.Errorf("%w: short header", errCorrupt)
	}
	if raw[0] != envelopeMagic[0] || raw[1] != envelopeMagic[1] {
		return nil, fmt.Errorf("%w: bad magic", errCorrupt)
	}
	if raw[2] != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errCorrupt, raw[2])
	}
	catLen := int(raw[20])
	if len(raw) < headerFixedLen+catLen {
		return nil, fmt.Errorf("%w: truncated category", errCorrupt)
	}
	return &stored{
		category:  types.Category(raw[headerFixedLen : headerFixedLen+catLen]),
		createdAt: time.Unix(0, int64(binary.BigEndian.Uint64(raw[4:12]))),
		expiresAt: time.Unix(0, int64(binary.BigEndian.Uint64(raw[12:20]))),
		flags:     raw[3],
		raw:       raw,
		bodyAt:    headerFixedLen + catLen,
	}, nil
}

// body returns a fresh, decompressed copy of the payload.
func (c *codec) body(s *stored) ([]byte, error) {
	src := s.raw[s.bodyAt:]
	if !s.compressed() {
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}
	out, err := c.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return out, nil
}
