package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrNotRecord      = errors.New("section is not an object")
	ErrMissingKind    = errors.New("section has no block type")
	ErrTenantMismatch = errors.New("block type belongs to another tenant")
	ErrUnknownKind    = errors.New("no renderer for block type")
	ErrDecode         = errors.New("cannot decode section")
)

// kindKeys are checked in order; the first truthy value wins.
var kindKeys = []string{"blockType", "block_type", "type"}

// ParseError describes why a section was skipped.
type ParseError struct {
	Index int
	Kind  string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("section %d (%s): %v", e.Index, e.Kind, e.Err)
	}
	return fmt.Sprintf("section %d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts one raw section into a Block owned by tenant. Errors are
// *ParseError values wrapping one of the Err* sentinels.
func Parse(raw json.RawMessage, tenant string) (Block, error) {
	return parseAt(raw, tenant, 0)
}

func parseAt(raw json.RawMessage, tenant string, index int) (Block, error) {
	if !isObject(raw) || !gjson.ValidBytes(raw) {
		return nil, &ParseError{Index: index, Err: ErrNotRecord}
	}

	kind, ok := kindOf(raw)
	if !ok {
		return nil, &ParseError{Index: index, Err: ErrMissingKind}
	}

	prefix := tenant + "."
	if !strings.HasPrefix(kind, prefix) {
		return nil, &ParseError{Index: index, Kind: kind, Err: ErrTenantMismatch}
	}

	newBlock, ok := registry[strings.TrimPrefix(kind, prefix)]
	if !ok {
		return nil, &ParseError{Index: index, Kind: kind, Err: ErrUnknownKind}
	}

	b := newBlock()
	if err := json.Unmarshal(raw, b); err != nil {
		return nil, &ParseError{Index: index, Kind: kind, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	b.setKind(kind)
	return b, nil
}

// kindOf returns the first truthy kind field. A truthy value that is not a
// string counts as missing.
func kindOf(raw json.RawMessage) (string, bool) {
	for _, key := range kindKeys {
		res := gjson.GetBytes(raw, key)
		if !truthy(res) {
			continue
		}
		if res.Type != gjson.String {
			return "", false
		}
		return res.Str, true
	}
	return "", false
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	case gjson.True:
		return true
	case gjson.JSON:
		return true
	}
	return false
}
