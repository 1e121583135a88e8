package pagination

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexCount tolerates the two shapes the API uses for the record count:
// a JSON number or a quoted string, under either @count or @counts.
type flexCount int

// UnmarshalJSON implements json.Unmarshaler.
func (c *flexCount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse record count %q: %w", s, err)
	}
	*c = flexCount(v)
	return nil
}

// queryEnvelope is the queryResponse wrapper every data response carries.
type queryEnvelope struct {
	QueryResponse struct {
		Count    flexCount         `json:"@count"`
		Counts   flexCount         `json:"@counts"`
		Entities []json.RawMessage `json:"entity"`
	} `json:"queryResponse"`
}

// parseEnvelope decodes a classified 200 body into its record count and
// entity list. The count is taken from @count, falling back to the legacy
// @counts key.
func parseEnvelope(body []byte) (int, []json.RawMessage, error) {
	var envelope queryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, nil, fmt.Errorf("decode query response: %w", err)
	}

	count := int(envelope.QueryResponse.Count)
	if count == 0 {
		count = int(envelope.QueryResponse.Counts)
	}
	return count, envelope.QueryResponse.Entities, nil
}
