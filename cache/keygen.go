package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// KeyFor builds a stable cache key from a path and its parameters.
// Parameters are sorted so map iteration order never changes the key, and
// hashed so free-form values cannot collide after sanitizing.
func KeyFor(path string, params map[string]string) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	// Clean path for filename
	cleanPath := sanitizeKey(strings.ReplaceAll(strings.Trim(path, "/"), "/", "_"))

	if len(parts) > 0 {
		sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
		return fmt.Sprintf("%s__%s", cleanPath, hex.EncodeToString(sum[:16]))
	}

	return cleanPath
}

// sanitizeKey ensures the key is safe for use as a filename or redis key
func sanitizeKey(key string) string {
	// For very long keys, use hash to avoid filesystem limits
	if len(key) > 200 {
		hash := sha256.Sum256([]byte(key))
		return fmt.Sprintf("hash_%x", hash)
	}

	// Replace unsafe characters
	unsafe := []string{"/", "\\", ":", "?", "&", "=", "#", "<", ">", "|", "*", "\"", " "}
	result := key
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}

	return result
}
