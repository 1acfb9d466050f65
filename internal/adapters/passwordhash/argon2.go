// Package passwordhash implements ports.PasswordHasher with argon2id.
//
// Hashes are stored in the PHC string format so parameters travel with the hash:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// Salt and key are unpadded standard base64.
package passwordhash

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync/atomic"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/observability/metrics"
	"github.com/target/gatekeeper/internal/observability/statsd"
	"github.com/target/gatekeeper/internal/ports"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

var _ ports.PasswordHasher = (*Hasher)(nil)

const (
	algorithm = "argon2id"
	saltLen   = 16

	minSaltLen = 8
	maxSaltLen = 64
	minKeyLen  = 16
	maxKeyLen  = 64

	defaultMaxCostFactor = 4
)

// Params are the argon2id cost settings.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	KeyLen      uint32
}

// DefaultParams follow the RFC 9106 second recommended option.
func DefaultParams() Params {
	return Params{MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 2, KeyLen: 32}
}

// Options configures a Hasher.
type Options struct {
	Params Params
	// Workers bounds concurrent hash computations. Defaults to GOMAXPROCS.
	Workers int
	// Metrics optionally receives the in-flight derivation gauge.
	Metrics statsd.Sink
	// MaxCostFactor caps the memory, iterations and parallelism Verify accepts
	// from a stored hash at this multiple of Params. Defaults to 4.
	MaxCostFactor uint32
}

// Hasher computes argon2id hashes on a bounded pool so request goroutines
// never saturate every CPU with key derivation.
type Hasher struct {
	params   Params
	ceiling  Params
	pool     *semaphore.Weighted
	metrics  statsd.Sink
	inflight atomic.Int64

	dummyState
}

// New constructs a Hasher.
func New(opts Options) *Hasher {
	p := opts.Params
	def := DefaultParams()
	if p.MemoryKiB == 0 {
		p.MemoryKiB = def.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	if p.KeyLen == 0 {
		p.KeyLen = def.KeyLen
	}
	p.KeyLen = max(p.KeyLen, minKeyLen)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	factor := opts.MaxCostFactor
	if factor == 0 {
		factor = defaultMaxCostFactor
	}
	return &Hasher{
		params:  p,
		ceiling: scale(p, factor),
		pool:    semaphore.NewWeighted(int64(workers)),
		metrics: opts.Metrics,
	}
}

func scale(p Params, factor uint32) Params {
	clamp := func(v uint32, limit uint64) uint64 { return min(uint64(v)*uint64(factor), limit) }
	return Params{
		MemoryKiB:   uint32(clamp(p.MemoryKiB, math.MaxUint32)),
		Iterations:  uint32(clamp(p.Iterations, math.MaxUint32)),
		Parallelism: uint8(clamp(uint32(p.Parallelism), math.MaxUint8)),
		KeyLen:      max(p.KeyLen, maxKeyLen),
	}
}

// Hash derives a new encoded hash with a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key, err := h.derive(ctx, []byte(plaintext), salt, h.params)
	if err != nil {
		return "", err
	}
	return encode(h.params, salt, key), nil
}

// Verify recomputes the hash with the parameters stored in encoded and
// compares in constant time.
func (h *Hasher) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	params, salt, want, err := decode(encoded, h.ceiling)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domainauth.ErrCorruptCredentialStore, err)
	}

	got, err := h.derive(ctx, []byte(plaintext), salt, params)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Params returns the parameters used for new hashes.
func (h *Hasher) Params() Params { return h.params }

func (h *Hasher) derive(ctx context.Context, password, salt []byte, p Params) ([]byte, error) {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire hash worker: %w", err)
	}
	defer h.pool.Release(1)

	metrics.EmitHashInflight(h.metrics, h.inflight.Add(1))
	defer func() { metrics.EmitHashInflight(h.metrics, h.inflight.Add(-1)) }()

	return argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLen), nil
}

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

var (
	errFormat  = errors.New("invalid hash format")
	errVersion = errors.New("unsupported argon2 version")
)

// decode parses encoded and rejects cost parameters above ceiling, so a
// corrupted row cannot make Verify allocate or spin without bound.
func decode(encoded string, ceiling Params) (Params, []byte, []byte, error) {
	// Leading "$" yields an empty first element.
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return Params{}, nil, nil, errFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: version: %w", errFormat, err)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, errVersion
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: params: %w", errFormat, err)
	}
	if p.MemoryKiB == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: zero cost parameter", errFormat)
	}
	if p.MemoryKiB > ceiling.MemoryKiB || p.Iterations > ceiling.Iterations || p.Parallelism > ceiling.Parallelism {
		return Params{}, nil, nil, fmt.Errorf("%w: cost parameters exceed m=%d,t=%d,p=%d",
			errFormat, ceiling.MemoryKiB, ceiling.Iterations, ceiling.Parallelism)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLen || len(salt) > maxSaltLen {
		return Params{}, nil, nil, fmt.Errorf("%w: salt", errFormat)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < minKeyLen || len(key) > int(ceiling.KeyLen) {
		return Params{}, nil, nil, fmt.Errorf("%w: key", errFormat)
	}
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}
