package blocks

import (
	_ "embed"
	"encoding/json"
)

//go:embed defaults/homepage.json
var defaultHomepage []byte

// DefaultHomepage returns the sections shown on the homepage when the CMS
// has nothing to offer. Each call returns a fresh slice.
func DefaultHomepage() []json.RawMessage {
	var sections []json.RawMessage
	if err := json.Unmarshal(defaultHomepage, &sections); err != nil {
		panic("blocks: invalid embedded homepage defaults: " + err.Error())
	}
	return sections
}
