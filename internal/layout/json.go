package layout

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the kind by name.
func (k PaddingKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (k *PaddingKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "inter-member":
		*k = InterMember
	case "tail":
		*k = TailPadding
	default:
		return fmt.Errorf("unknown padding kind %q", s)
	}
	return nil
}

// MarshalJSON encodes the kind by name.
func (k SuggestionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (k *SuggestionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "reorder":
		*k = Reorder
	case "cache-line":
		*k = CacheLineSpan
	default:
		return fmt.Errorf("unknown suggestion kind %q", s)
	}
	return nil
}
