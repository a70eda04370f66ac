// Command createkey prints a random API key for the API_KEY setting.
package main

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
)

const (
	// charset: uppercase letters, lowercase letters, and numbers
	charset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	keyLength = 32
)

func main() {
	apiKey, err := generateAPIKey(keyLength)
	if err != nil {
		slog.Error("Failed to generate random API key", "error", err)
		os.Exit(1)
	}

	fmt.Println("API Key:", apiKey)
	fmt.Println()
	fmt.Println("Set it on the server:")
	fmt.Printf("  API_KEY=%s\n", apiKey)
	fmt.Println()
	fmt.Println("Example request:")
	fmt.Printf("curl -X POST -H \"Authorization: Bearer %s\" -H \"Content-Type: application/json\" \\\n", apiKey)
	fmt.Printf("  -d '{\"query\":\"quiet room near campus, budget 25000\"}' \\\n")
	fmt.Printf("  http://localhost:8000/search\n")
}

// generateAPIKey returns a key of length characters from charset. Rejection
// sampling keeps the distribution uniform.
func generateAPIKey(length int) (string, error) {
	charsetLen := len(charset)
	// Largest multiple of charsetLen that fits in a byte.
	maxValidByte := byte((256 / charsetLen) * charsetLen)

	key := make([]byte, length)
	buf := make([]byte, length)

	for filled := 0; filled < length; {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxValidByte {
				continue
			}

			key[filled] = charset[int(b)%charsetLen]
			filled++

			if filled == length {
				break
			}
		}
	}

	return string(key), nil
}
