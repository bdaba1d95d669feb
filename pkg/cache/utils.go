package cache

import (
	"fmt"
	"strings"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s:%s", prefix, id)
}

// GenerateKeyWithParams joins params onto prefix with ':'.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		fmt.Fprintf(&b, ":%v", param)
	}
	return b.String()
}
