package platform

import (
	"encoding/json"
	"fmt"

	"github.com/iliyamo/venture-platform/internal/store"
)

// fieldString reads one top-level field of a raw document as a string.
// Missing fields read as "".
func fieldString(d store.Document, field string) string {
	if field == "" {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(d.Data, &m); err != nil {
		return ""
	}
	switch v := m[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
