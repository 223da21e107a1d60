package adapter

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const traderScanBaseURL = "https://www.candlestick.io/traderscan/trading-performance/"

// HashWalletAddress encrypts a wallet address with the provider's portfolio
// key so it can be used in trader-scan URLs and performance lookups. The
// provider uses AES-CBC with the key doubling as the IV and PKCS7 padding,
// and expects the ciphertext base64-encoded.
func HashWalletAddress(address, portfolioKey string) (string, error) {
	key := []byte(portfolioKey)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("invalid portfolio key: %w", err)
	}

	iv := key[:aes.BlockSize]
	plaintext := pkcs7Pad([]byte(strings.ToLower(address)), aes.BlockSize)

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// TraderScanURL builds the public trader-scan page URL for a wallet address.
// Returns an empty string when the address cannot be encrypted.
func TraderScanURL(address, portfolioKey string) string {
	hash, err := HashWalletAddress(address, portfolioKey)
	if err != nil {
		return ""
	}

	params := url.Values{}
	params.Set("active_in", "last_1_month")
	params.Set("WA", hash)

	return traderScanBaseURL + "?" + params.Encode()
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}
