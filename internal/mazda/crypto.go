package mazda

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transport constants the mobile app bakes into every request. The payload
// cipher is AES-128-CBC with a fixed IV; confidentiality comes from TLS, the
// encryption layer is an app-integrity check.
const (
	aesIV          = "0102030405060708"
	signatureMD5   = "C383D8C4D279B78130AD52DC71D95CAA"
	appPackageID   = "com.interrait.mymazda"
	appOS          = "Android"
	appVersion     = "8.5.2"
	usherSDKVer    = "11.3.0700.001"
	userAgentBase  = "MyMazda-Android/8.5.2"
	userAgentUsher = "MyMazda/8.5.2 (Google Pixel 3a; Android 11)"
)

func timestampMs() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// decryptionKeyFromAppCode derives the key for decrypting the checkVersion
// response, the only exchange that happens before the server issues keys.
func decryptionKeyFromAppCode(appCode string) string {
	val1 := strings.ToUpper(md5Hex(appCode + appPackageID))
	val2 := strings.ToLower(md5Hex(val1 + signatureMD5))
	return val2[4:20]
}

// temporarySignKey derives the signing key used before server-issued keys
// exist (the checkVersion exchange and bodyless requests).
func temporarySignKey(appCode string) string {
	val1 := strings.ToUpper(md5Hex(appCode + appPackageID))
	val2 := strings.ToLower(md5Hex(val1 + signatureMD5))
	return val2[20:32] + val2[0:10] + val2[4:6]
}

// signPayload computes the request signature over the encrypted payload, a
// stretched copy of the timestamp, and the server-issued signing key.
func signPayload(encryptedPayload, timestamp, signKey string) string {
	return payloadSign(encryptedPayload+stretchTimestamp(timestamp), signKey)
}

// signTimestamp signs a bodyless request with the app-code-derived key.
func signTimestamp(timestamp, appCode string) string {
	stretched := strings.ToUpper(stretchTimestamp(timestamp))
	return payloadSign(stretched, temporarySignKey(appCode))
}

func stretchTimestamp(timestamp string) string {
	return timestamp + timestamp[6:] + timestamp[3:]
}

func payloadSign(encryptedPayloadAndTimestamp, signKey string) string {
	sum := sha256.Sum256([]byte(encryptedPayloadAndTimestamp + signKey))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// encryptPayload AES-128-CBC encrypts and base64-encodes a JSON payload.
func encryptPayload(plaintext, key string) (string, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("payload cipher: %w", err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(aesIV)).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// decryptPayload reverses encryptPayload.
func decryptPayload(encoded, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("payload base64: %w", err)
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("payload cipher: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("payload length %d not a multiple of the block size", len(raw))
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, []byte(aesIV)).CryptBlocks(out, raw)
	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}

// encryptPasswordRSA encrypts "password:timestamp" with the usher service's
// RSA public key (base64 DER, PKCS#1 v1.5 padding).
func encryptPasswordRSA(publicKeyB64, password, timestamp string) (string, error) {
	der, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", fmt.Errorf("public key base64: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("public key is %T, not RSA", pub)
	}
	enc, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, []byte(password+":"+timestamp))
	if err != nil {
		return "", fmt.Errorf("encrypt password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(enc), nil
}

// uuidFromSeed derives a stable UUID-shaped device identifier from a seed so
// the service sees the same "device" across restarts.
func uuidFromSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// usherDeviceIDFromSeed derives the account-service device ID from a seed.
func usherDeviceIDFromSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	n, _ := strconv.ParseUint(h[0:8], 16, 64)
	return "ACCT" + strconv.FormatUint(n, 10)
}
