package cachekey

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Digest returns a 128-bit FNV-1a hex digest of v's gob encoding. Values gob
// rejects, such as those holding NaN in some positions, are hashed from their
// spew dump instead.
func Digest(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		v = s.String()
	}
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(v); err != nil {
		h.Reset()
		printer.Fprintf(h, "%#v", v)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
