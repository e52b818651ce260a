package api

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/octabyte/bm-session/utils"
)

// DecodeList decodes a bare JSON array or a paginated {"results": [...]}
// envelope into out, which must point to a slice.
func DecodeList(body []byte, out interface{}) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("decode list: invalid json")
	}
	parsed := gjson.ParseBytes(body)

	raw := parsed.Raw
	switch {
	case parsed.IsArray():
	case parsed.Get("results").IsArray():
		raw = parsed.Get("results").Raw
	default:
		return fmt.Errorf("decode list: expected array or results envelope")
	}
	if err := utils.BytesToStruct([]byte(raw), out); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}
