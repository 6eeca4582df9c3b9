package trace

import (
	"bytes"
	stdjson "encoding/json"
)

// jsonIndent pretty prints the JSON body for dumps, keys order is kept.
func jsonIndent(dst *bytes.Buffer, body []byte) error {
	return stdjson.Indent(dst, bytes.TrimSpace(body), "", "  ")
}
