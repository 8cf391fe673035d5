package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// DefaultMaxPasswordBytes caps password input length when Config leaves
// MaxPasswordBytes unset. Argon2 cost grows with input size, so unbounded
// passwords are a cheap way to burn server CPU.
const DefaultMaxPasswordBytes = 1024

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	algorithmID           = "argon2id"
)

var (
	errPasswordTooShort = errors.New("password must be at least 10 bytes")
	errPasswordTooLong  = errors.New("password exceeds maximum length")
	errMalformedHash    = errors.New("invalid PHC format")
)

// Config holds the argon2id cost parameters and input limits. Values below
// the package floors are rejected by NewArgon2; a zero MaxPasswordBytes
// falls back to DefaultMaxPasswordBytes.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// Argon2 hashes and verifies passwords in the PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$key). Stored hashes carry their own
// cost parameters, so Verify works against hashes produced under older
// configurations and NeedsUpgrade reports when a rehash is due.
type Argon2 struct {
	config Config
}

// decodedHash is the result of pulling a stored PHC string apart. The key
// length is taken from the decoded key itself rather than the parameters
// section, matching what argon2.IDKey actually produced.
type decodedHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg against the package floors and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives an argon2id key from password under a fresh random salt and
// returns the PHC-encoded result.
func (a *Argon2) Hash(password string) (string, error) {
	// Password processing uses raw string bytes exactly as provided (no Unicode normalization).
	if err := a.checkLength(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key for password under the parameters embedded in
// encodedHash and compares in constant time. Over-length passwords are
// rejected before any key derivation runs.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, errPasswordTooLong
	}

	decoded, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		decoded.salt,
		decoded.time,
		decoded.memory,
		decoded.parallelism,
		uint32(len(decoded.key)),
	)

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced under weaker
// parameters than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	decoded, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	stale := a.config.Memory > decoded.memory ||
		a.config.Time > decoded.time ||
		a.config.Parallelism > decoded.parallelism ||
		a.config.KeyLength != uint32(len(decoded.key))
	return stale, nil
}

func (a *Argon2) checkLength(password string) error {
	if len(password) < minPassBytes {
		return errPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return errPasswordTooLong
	}
	return nil
}

// decodeHash walks the five $-separated sections of a PHC string:
// algorithm, version, cost parameters, salt, key.
func decodeHash(encodedHash string) (*decodedHash, error) {
	rest, ok := strings.CutPrefix(encodedHash, "$"+algorithmID+"$")
	if !ok {
		if !strings.HasPrefix(encodedHash, "$") {
			return nil, errMalformedHash
		}
		return nil, errors.New("unsupported algorithm")
	}

	sections := strings.Split(rest, "$")
	if len(sections) != 4 {
		return nil, errMalformedHash
	}

	versionField, ok := strings.CutPrefix(sections[0], "v=")
	if !ok {
		return nil, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(versionField)
	if err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	decoded := &decodedHash{}
	if err := decoded.setCostParams(sections[1]); err != nil {
		return nil, err
	}

	if decoded.salt, err = base64.StdEncoding.DecodeString(sections[2]); err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(decoded.salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}

	if decoded.key, err = base64.StdEncoding.DecodeString(sections[3]); err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(decoded.key) == 0 {
		return nil, errors.New("invalid hash length")
	}

	return decoded, nil
}

// setCostParams parses the "m=...,t=...,p=..." section. Each parameter must
// appear exactly once and meet the package floor; parameters below the floor
// mean the stored hash predates any configuration this package would accept,
// so it is treated as malformed rather than merely stale.
func (d *decodedHash) setCostParams(section string) error {
	var seenM, seenT, seenP bool

	for _, field := range strings.Split(section, ",") {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return errors.New("invalid parameter entry")
		}

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) || seenM {
				return errors.New("invalid memory parameter")
			}
			d.memory = uint32(v)
			seenM = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) || seenT {
				return errors.New("invalid time parameter")
			}
			d.time = uint32(v)
			seenT = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) || seenP {
				return errors.New("invalid parallelism parameter")
			}
			d.parallelism = uint8(v)
			seenP = true
		default:
			return errors.New("unsupported parameter")
		}
	}

	if !seenM || !seenT || !seenP {
		return errors.New("missing parameters")
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxPasswordBytes < 0 {
		return errors.New("password max length must not be negative")
	}
	if cfg.MaxPasswordBytes > 0 && cfg.MaxPasswordBytes < minPassBytes {
		return errors.New("password max length must be >= 10 bytes")
	}

	return nil
}
