package piapi

import (
	"fmt"
	"net/url"
	"strconv"
)

// virtualDomainKey is the query parameter scoping a request to one virtual
// domain.
const virtualDomainKey = "_ctx.domain"

// Params are the caller-supplied query parameters for a resource request:
// filters, sorting, or a service operation's arguments. The client never
// mutates a Params value it is handed; scoping keys are injected into a
// copy.
type Params map[string]any

// clone returns a shallow copy with room for n extra keys.
func (p Params) clone(n int) Params {
	copied := make(Params, len(p)+n)
	for key, value := range p {
		copied[key] = value
	}
	return copied
}

// queryValues converts params to URL query values using stable value
// formatting, so the same logical value always produces the same query
// string (and the same cache fingerprint upstream).
func (p Params) queryValues() (url.Values, error) {
	values := make(url.Values, len(p))
	for key, value := range p {
		formatted, err := formatValue(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
		values.Set(key, formatted)
	}
	return values, nil
}

// formatValue renders a parameter value as its canonical query string form.
func formatValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case fmt.Stringer:
		return v.String(), nil
	case nil:
		return "", fmt.Errorf("nil value")
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}
