package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned when no JSON object can be recovered from a
// model reply.
var ErrUnparseable = errors.New("no JSON object in model response")

// NotFound is what the model is told to answer for a missing term.
const NotFound = "Not found"

// ParseObject recovers a JSON object from a model reply. It tries, in order:
// the raw text, the outermost {...} after stripping Markdown fences, a
// repaired version of that span, and finally a lenient Hjson parse.
func ParseObject(raw string) (map[string]interface{}, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrUnparseable
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, nil
	}

	span, ok := outermostObject(cleanModelJSON(s))
	if !ok {
		return nil, ErrUnparseable
	}

	obj = nil
	if err := json.Unmarshal([]byte(span), &obj); err == nil && obj != nil {
		return obj, nil
	}

	if repaired, err := jsonrepair.RepairJSON(span); err == nil {
		obj = nil
		if err := json.Unmarshal([]byte(repaired), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}

	obj = nil
	if err := hjson.Unmarshal([]byte(span), &obj); err == nil && obj != nil {
		return obj, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnparseable, truncate(raw, 200))
}

// ParseTermValues parses a {"Term": "value"} reply into strings. Non-string
// values are rendered; nested values are kept as compact JSON.
func ParseTermValues(raw string) (map[string]string, error) {
	obj, err := ParseObject(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = RenderValue(v)
	}
	return out, nil
}

// RenderValue turns a decoded JSON value into display text.
func RenderValue(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return NotFound
	case string:
		return strings.TrimSpace(vv)
	case float64:
		return formatFloat(vv)
	case bool:
		return strconv.FormatBool(vv)
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	}
}

// formatFloat prints up to two decimals and drops trailing zeros.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// outermostObject returns the span from the first '{' to the last '}'.
func outermostObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		// Truncated reply: hand the open object to the repair stage.
		return s[start:], true
	}
	return s[start : end+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
