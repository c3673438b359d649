package config

import (
	"sort"
	"strings"
)

// secretSuffixes mark dot-separated keys whose values are credentials.
var secretSuffixes = []string{".api_key", ".token"}

// IsSecretKey reports whether key names a credential, e.g. obsidian.api_key
// or telegram.token.
func IsSecretKey(key string) bool {
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// Flatten converts a nested map into a flat map with dot-separated keys:
// {"obsidian": {"base_url": "..."}} becomes {"obsidian.base_url": "..."}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if child, ok := v.(map[string]any); ok {
				walk(prefix+k+".", child)
				continue
			}
			out[prefix+k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A key that is both a value and a
// prefix of another key keeps the nested map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := node[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[part] = next
			}
			node = next
		}
		leaf := parts[len(parts)-1]
		if _, isMap := node[leaf].(map[string]any); !isMap {
			node[leaf] = v
		}
	}
	return out
}

// MaskSecrets returns a copy of flat with credential values replaced by
// "***" plus their last 4 characters. Values of 4 characters or fewer are
// fully masked and empty values stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		s, ok := v.(string)
		if !ok || s == "" || !IsSecretKey(k) {
			continue
		}
		if len(s) <= 4 {
			out[k] = "***"
		} else {
			out[k] = "***" + s[len(s)-4:]
		}
	}
	return out
}

// SortedKeys returns the keys of flat in lexical order.
func SortedKeys(flat map[string]any) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
