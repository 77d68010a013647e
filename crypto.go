package heptazip

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// cryptoKeyLen is the AES-256 key size in bytes.
const cryptoKeyLen = 32

var errShortSalt = errors.New("heptazip: salt or iv too long to encode")

// password wraps a user-supplied passphrase so it can be zeroized once the
// writer or editor no longer needs it. It's a value type distinct from
// internal/aes7z's own key cache: that package only ever derives keys for
// decoding, while this one also builds the properties blob an encoder
// writes and is responsible for scrubbing the plaintext password itself,
// not just its derived key.
type password struct {
	b []byte
}

func newPassword(s string) *password {
	return &password{b: []byte(s)}
}

// zero overwrites the password's backing bytes. Call once the password is
// no longer needed; a zeroed password still derives keys (to all-zero
// material) so callers must not reuse it afterward.
func (p *password) zero() {
	for i := range p.b {
		p.b[i] = 0
	}
}

func (p *password) String() string { return string(p.b) }

// aesEncryptionParams is the decoded form of the 7z AES properties blob:
// the cycle count, salt, and IV that key derivation and CBC both need.
type aesEncryptionParams struct {
	cycles int
	salt   []byte
	iv     []byte
}

// newAESEncryptionParams builds fresh, random salt/IV for a new encrypted
// folder. cycles follows 7-Zip's convention of a power-of-two SHA-256
// iteration count; 19 is the default 7-Zip uses for -mhe=on archives.
func newAESEncryptionParams(cycles int) (*aesEncryptionParams, error) {
	if cycles < 0 || cycles > 0x3f { //nolint:mnd
		cycles = defaultAESCycles
	}

	p := &aesEncryptionParams{cycles: cycles}

	if cycles != 0x3f {
		p.salt = make([]byte, aes.BlockSize)
		if _, err := rand.Read(p.salt); err != nil {
			return nil, fmt.Errorf("heptazip: error generating salt: %w", err)
		}
	}

	p.iv = make([]byte, aes.BlockSize)
	if _, err := rand.Read(p.iv); err != nil {
		return nil, fmt.Errorf("heptazip: error generating iv: %w", err)
	}

	return p, nil
}

// defaultAESCycles is 7-Zip's default SHA-256 iteration power for -mhe=on
// and for encrypted data streams (2^19 rounds).
const defaultAESCycles = 19

// propertiesBlob encodes the AES properties byte string the header records
// against the coder: flags byte, length-nibble byte, salt, iv. Bit 7 of the
// flags marks a salt and bit 6 an IV; each nibble holds that length minus one.
func (p *aesEncryptionParams) propertiesBlob() ([]byte, error) {
	if len(p.salt) > 16 || len(p.iv) > 16 { //nolint:mnd
		return nil, errShortSalt
	}

	flags := byte(p.cycles & 0x3f) //nolint:mnd

	var lengths byte

	if len(p.salt) > 0 {
		flags |= 1 << 7                     //nolint:mnd
		lengths |= byte(len(p.salt)-1) << 4 //nolint:mnd
	}

	if len(p.iv) > 0 {
		flags |= 1 << 6 //nolint:mnd
		lengths |= byte(len(p.iv) - 1)
	}

	buf := make([]byte, 0, 2+len(p.salt)+len(p.iv))
	buf = append(buf, flags, lengths)
	buf = append(buf, p.salt...)
	buf = append(buf, p.iv...)

	return buf, nil
}

// deriveAESKey runs the 7z key-stretching scheme: SHA-256 over
// salt||password-as-UTF16LE repeated 2^cycles times, each iteration also
// folding in a little-endian 64-bit counter. cycles == 0x3f means the
// password bytes are the key material directly.
func deriveAESKey(pw *password, params *aesEncryptionParams) ([]byte, error) {
	var seed bytes.Buffer

	seed.Write(params.salt)

	utf16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

	enc := transform.NewWriter(&seed, utf16le.NewEncoder())
	if _, err := enc.Write(pw.b); err != nil {
		return nil, fmt.Errorf("heptazip: error encoding password: %w", err)
	}

	key := make([]byte, cryptoKeyLen)

	if params.cycles == 0x3f { //nolint:mnd
		copy(key, seed.Bytes())

		return key, nil
	}

	h := sha256.New()

	for i := uint64(0); i < uint64(1)<<uint(params.cycles); i++ {
		h.Write(seed.Bytes())

		var counter [8]byte
		binary.LittleEndian.PutUint64(counter[:], i)
		h.Write(counter[:])
	}

	copy(key, h.Sum(nil))

	return key, nil
}

// newAESEncrypter builds a CBC encrypter ready to transform plaintext
// blocks for a freshly-created encrypted folder, returning it alongside the
// properties blob to record in the coder.
func newAESEncrypter(pw *password, cycles int) (cipher.BlockMode, []byte, error) {
	params, err := newAESEncryptionParams(cycles)
	if err != nil {
		return nil, nil, err
	}

	key, err := deriveAESKey(pw, params)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("heptazip: error creating cipher: %w", err)
	}

	props, err := params.propertiesBlob()
	if err != nil {
		return nil, nil, err
	}

	return cipher.NewCBCEncrypter(block, params.iv), props, nil
}
