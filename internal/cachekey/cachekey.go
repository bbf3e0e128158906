// Package cachekey names rendered echogram artifacts. A key depends only on the
// selection and colour scale, so a repeated request finds the artifact rendered
// the first time instead of producing another file.
package cachekey

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chrissnell/echomap/internal/selector"
)

const prefix = "echogram"

// tokenReplacer keeps numbers inside [A-Za-z0-9].
var tokenReplacer = strings.NewReplacer("-", "m", ".", "p", "+", "")

// boundLayout writes a time bound to the second, plus any fraction.
const boundLayout = "20060102T150405.999999999Z"

// Derive returns the artifact name for sel drawn with the colour scale
// [vmin, vmax]. The result contains only letters, digits, '_' and '-'.
//
// Point selections produce echogram_p<point>_c<channel>_v<vmin>_<vmax>; time
// ranges produce echogram_c<channel>_t<start>-<end>_v<vmin>_<vmax>.
func Derive(sel selector.Selection, vmin, vmax float64) (string, error) {
	lo, err := number(vmin)
	if err != nil {
		return "", fmt.Errorf("vmin: %w", err)
	}
	hi, err := number(vmax)
	if err != nil {
		return "", fmt.Errorf("vmax: %w", err)
	}

	var b strings.Builder
	b.WriteString(prefix)
	if sel.HasTimeRange() {
		start, err := bound(*sel.Start)
		if err != nil {
			return "", err
		}
		end, err := bound(*sel.End)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "_c%s_t%s-%s", integer(sel.ChannelIndex), start, end)
	} else {
		fmt.Fprintf(&b, "_p%s_c%s", integer(sel.PointIndex), integer(sel.ChannelIndex))
	}
	fmt.Fprintf(&b, "_v%s_%s", lo, hi)
	return b.String(), nil
}

func integer(i int) string {
	return tokenReplacer.Replace(strconv.Itoa(i))
}

func number(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("colour scale bound %v is not finite", f)
	}
	if f == 0 {
		f = 0 // -0 and 0 name the same scale
	}
	return tokenReplacer.Replace(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func bound(s string) (string, error) {
	t, err := selector.ParseTimestamp(s)
	if err != nil {
		return "", err
	}
	return tokenReplacer.Replace(t.UTC().Format(boundLayout)), nil
}
