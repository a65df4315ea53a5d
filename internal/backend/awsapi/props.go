package awsapi

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Resolved descriptor properties are plain Go values. These helpers read them
// into the shapes the SDK inputs expect.

func str(p map[string]any, key string) string {
	if v, ok := p[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func strPtr(p map[string]any, key string) *string {
	if s := str(p, key); s != "" {
		return aws.String(s)
	}
	return nil
}

func boolVal(p map[string]any, key string) bool {
	b, _ := p[key].(bool)
	return b
}

func int32Ptr(p map[string]any, key string) *int32 {
	switch v := p[key].(type) {
	case int:
		return aws.Int32(int32(v))
	case int32:
		return aws.Int32(v)
	case int64:
		return aws.Int32(int32(v))
	case float64:
		return aws.Int32(int32(v))
	}
	return nil
}

func object(p map[string]any, key string) map[string]any {
	m, _ := p[key].(map[string]any)
	return m
}

func list(p map[string]any, key string) []any {
	l, _ := p[key].([]any)
	return l
}

func stringList(p map[string]any, key string) []string {
	var out []string
	for _, v := range list(p, key) {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func stringMap(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func boolMap(m map[string]any) map[string]bool {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		b, _ := v.(bool)
		out[k] = b
	}
	return out
}

type tag struct{ key, value string }

// tags reads the Key/Value list under "Tags", sorted by key.
func tags(p map[string]any) []tag {
	var out []tag
	for _, v := range list(p, "Tags") {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, tag{key: str(m, "Key"), value: str(m, "Value")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func tagMap(p map[string]any) map[string]string {
	ts := tags(p)
	if len(ts) == 0 {
		return nil
	}
	out := make(map[string]string, len(ts))
	for _, t := range ts {
		out[t.key] = t.value
	}
	return out
}

func jsonDoc(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding policy document: %w", err)
	}
	return string(data), nil
}
