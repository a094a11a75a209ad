package radius

import (
	"crypto/des"
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"golang.org/x/crypto/md4"
)

// RFC 2759 magic constants for the authenticator response
var (
	magicServerToClient = []byte("Magic server to client signing constant")
	magicPad            = []byte("Pad to make it do more than one iteration")
)

// NTPasswordHash computes the NT hash: MD4 over the password encoded as
// UTF-16LE, no BOM, no terminator.
func NTPasswordHash(password string) []byte {
	codes := utf16.Encode([]rune(password))
	encoded := make([]byte, len(codes)*2)
	for i, c := range codes {
		binary.LittleEndian.PutUint16(encoded[i*2:], c)
	}

	h := md4.New()
	h.Write(encoded)
	return h.Sum(nil)
}

// HashNTPasswordHash is MD4 of the NT hash (PasswordHashHash in RFC 2759)
func HashNTPasswordHash(ntHash []byte) []byte {
	h := md4.New()
	h.Write(ntHash)
	return h.Sum(nil)
}

// ChallengeHash derives the 8-byte challenge for MS-CHAPv2: SHA-1 over
// peer challenge, authenticator challenge and the User-Name bytes exactly
// as received.
func ChallengeHash(peerChallenge, authChallenge []byte, username string) []byte {
	h := sha1.New()
	h.Write(peerChallenge)
	h.Write(authChallenge)
	h.Write([]byte(username))
	return h.Sum(nil)[:8]
}

// desEncrypt expands a 7-byte key to an 8-byte DES key and encrypts one
// 8-byte block in ECB mode with no padding.
func desEncrypt(key7, clear []byte) ([]byte, error) {
	if len(key7) != 7 {
		return nil, fmt.Errorf("des key must be 7 bytes, got %d", len(key7))
	}
	if len(clear) != 8 {
		return nil, fmt.Errorf("des block must be 8 bytes, got %d", len(clear))
	}

	desKey := make([]byte, 8)
	desKey[0] = key7[0]
	desKey[1] = (key7[0] << 7) | (key7[1] >> 1)
	desKey[2] = (key7[1] << 6) | (key7[2] >> 2)
	desKey[3] = (key7[2] << 5) | (key7[3] >> 3)
	desKey[4] = (key7[3] << 4) | (key7[4] >> 4)
	desKey[5] = (key7[4] << 3) | (key7[5] >> 5)
	desKey[6] = (key7[5] << 2) | (key7[6] >> 6)
	desKey[7] = key7[6] << 1

	// DES ignores the low (parity) bit of each key byte; set it anyway
	for i := range desKey {
		desKey[i] = setParityBit(desKey[i])
	}

	block, err := des.NewCipher(desKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 8)
	block.Encrypt(out, clear)
	return out, nil
}

// setParityBit sets the odd-parity bit for a DES key byte
func setParityBit(b byte) byte {
	parity := byte(0)
	for i := 0; i < 7; i++ {
		parity ^= (b >> i) & 1
	}
	return (b & 0xFE) | (parity ^ 1)
}

// ChallengeResponse is the 3-block DES response: the 16-byte password hash
// is zero-padded to 21 bytes, split into three 7-byte keys, and each key
// encrypts the 8-byte challenge.
func ChallengeResponse(challenge, passwordHash []byte) ([]byte, error) {
	if len(challenge) != 8 {
		return nil, fmt.Errorf("challenge must be 8 bytes, got %d", len(challenge))
	}
	if len(passwordHash) != 16 {
		return nil, fmt.Errorf("password hash must be 16 bytes, got %d", len(passwordHash))
	}

	padded := make([]byte, 21)
	copy(padded, passwordHash)

	response := make([]byte, 0, 24)
	for i := 0; i < 21; i += 7 {
		block, err := desEncrypt(padded[i:i+7], challenge)
		if err != nil {
			return nil, err
		}
		response = append(response, block...)
	}
	return response, nil
}

// GenerateNTResponse computes the MS-CHAPv2 NT-Response from the NT hash
func GenerateNTResponse(authChallenge, peerChallenge []byte, username string, ntHash []byte) ([]byte, error) {
	return ChallengeResponse(ChallengeHash(peerChallenge, authChallenge, username), ntHash)
}

// AuthenticatorResponse computes the RFC 2759 "S=..." server proof sent
// back in MS-CHAP2-Success (40 uppercase hex chars, without the prefix).
func AuthenticatorResponse(ntHash, ntResponse, peerChallenge, authChallenge []byte, username string) string {
	h := sha1.New()
	h.Write(HashNTPasswordHash(ntHash))
	h.Write(ntResponse)
	h.Write(magicServerToClient)
	digest := h.Sum(nil)

	challenge := ChallengeHash(peerChallenge, authChallenge, username)

	h2 := sha1.New()
	h2.Write(digest)
	h2.Write(challenge)
	h2.Write(magicPad)
	return fmt.Sprintf("%X", h2.Sum(nil))
}

// VerifyMSCHAP verifies an MS-CHAP (v1) response against the NT hash.
// Response layout: ident(1) flags(1) LM-Response(24) NT-Response(24);
// only the NT response is checked.
func VerifyMSCHAP(challenge, response, ntHash []byte) bool {
	if len(challenge) < 8 || len(response) < 50 {
		return false
	}
	expected, err := ChallengeResponse(challenge[:8], ntHash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(response[26:50], expected) == 1
}

// VerifyMSCHAP2 verifies an MS-CHAPv2 response against the NT hash.
// Response layout: ident(1) flags(1) PeerChallenge(16) reserved(8)
// NT-Response(24). On success it returns the MS-CHAP2-Success payload:
// ident || "S=" || 40 uppercase hex chars.
func VerifyMSCHAP2(username string, ntHash, authChallenge, response []byte) (bool, []byte) {
	if len(response) < 50 || len(authChallenge) < 16 {
		return false, nil
	}

	ident := response[0]
	peerChallenge := response[2:18]
	ntResponse := response[26:50]

	expected, err := GenerateNTResponse(authChallenge, peerChallenge, username, ntHash)
	if err != nil {
		return false, nil
	}
	if subtle.ConstantTimeCompare(ntResponse, expected) != 1 {
		return false, nil
	}

	authResp := AuthenticatorResponse(ntHash, ntResponse, peerChallenge, authChallenge, username)
	return true, []byte(fmt.Sprintf("%cS=%s", ident, authResp))
}

// VerifyCHAP verifies a CHAP response per RFC 1994: MD5(id || cleartext ||
// challenge) against the 16 bytes following the identifier in the 17-byte
// CHAP-Password attribute.
func VerifyCHAP(chapPassword, challenge []byte, cleartext string) bool {
	if len(chapPassword) != 17 || len(challenge) == 0 || cleartext == "" {
		return false
	}

	h := md5.New()
	h.Write(chapPassword[:1])
	h.Write([]byte(cleartext))
	h.Write(challenge)
	return subtle.ConstantTimeCompare(h.Sum(nil), chapPassword[1:]) == 1
}
