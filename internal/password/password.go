// password реализует хэширование и проверку паролей на Argon2id.
//
// Хэш хранится в самоописывающем PHC-формате:
//
//	$argon2id$v=19$m=65536,t=2,p=2$<salt_b64>$<key_b64>
//
// Стоимостные параметры вшиты в строку, поэтому их изменение в конфигурации
// не ломает проверку ранее сохранённых хэшей: Verify читает параметры из
// самого хэша.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/pribylovaa/go-auth-service/internal/config"
)

const algorithmID = "argon2id"

var (
	// ErrWeakParams — стоимостные параметры ниже допустимого минимума.
	ErrWeakParams = errors.New("argon2 params below minimum")
)

// Минимально допустимые параметры.
const (
	minTimeCost    uint32 = 1
	minMemoryKiB   uint32 = 8 * 1024
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Hasher хэширует пароли по Argon2id с параметрами из конфигурации.
// Экземпляр неизменяем после создания и безопасен для конкурентного использования.
type Hasher struct {
	cfg config.Argon2Config
}

// New создаёт Hasher, валидируя стоимостные параметры.
func New(cfg config.Argon2Config) (*Hasher, error) {
	const op = "password.New"

	if cfg.TimeCost < minTimeCost ||
		cfg.MemoryKiB < minMemoryKiB ||
		cfg.Parallelism < minParallelism ||
		cfg.SaltLength < minSaltLength ||
		cfg.KeyLength < minKeyLength {
		return nil, fmt.Errorf("%s: %w", op, ErrWeakParams)
	}

	return &Hasher{cfg: cfg}, nil
}

// Hash возвращает PHC-строку для пароля. Соль генерируется заново при
// каждом вызове, поэтому одинаковые пароли дают разные хэши.
func (h *Hasher) Hash(password string) (string, error) {
	const op = "password.Hash"

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.cfg.TimeCost,
		h.cfg.MemoryKiB,
		h.cfg.Parallelism,
		h.cfg.KeyLength,
	)

	encoded := fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.cfg.MemoryKiB,
		h.cfg.TimeCost,
		h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify сравнивает пароль с сохранённым хэшем за константное время.
// На любом некорректном входе (битый формат, чужой алгоритм) возвращает
// false, не ошибку: для вызывающего это эквивалент «пароль не подошёл».
func (h *Hasher) Verify(password, encoded string) bool {
	p, err := parsePHC(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password),
		p.salt,
		p.timeCost,
		p.memoryKiB,
		p.parallelism,
		uint32(len(p.key)),
	)

	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

type phc struct {
	memoryKiB   uint32
	timeCost    uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// parsePHC разбирает строку вида $argon2id$v=19$m=..,t=..,p=..$salt$key.
func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid phc format")
	}

	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, errors.New("missing version")
	}
	v, err := strconv.Atoi(version)
	if err != nil || v != argon2.Version {
		return nil, errors.New("unsupported version")
	}

	var p phc
	for _, kv := range strings.Split(parts[3], ",") {
		k, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("invalid params")
		}

		switch k {
		case "m":
			n, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return nil, errors.New("invalid memory param")
			}
			p.memoryKiB = uint32(n)
		case "t":
			n, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return nil, errors.New("invalid time param")
			}
			p.timeCost = uint32(n)
		case "p":
			n, err := strconv.ParseUint(val, 10, 8)
			if err != nil {
				return nil, errors.New("invalid parallelism param")
			}
			p.parallelism = uint8(n)
		default:
			return nil, errors.New("unknown param")
		}
	}

	if p.memoryKiB == 0 || p.timeCost == 0 || p.parallelism == 0 {
		return nil, errors.New("missing params")
	}

	p.salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(p.salt) == 0 {
		return nil, errors.New("invalid salt")
	}

	p.key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(p.key) == 0 {
		return nil, errors.New("invalid key")
	}

	return &p, nil
}
