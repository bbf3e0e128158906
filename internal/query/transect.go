package query

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/chrissnell/echomap/internal/selector"
)

// TransectHeader is the first row written by Transect.
var TransectHeader = []string{"ping_time", "channel", "echo_range", "Sv"}

// Transect writes every Sv cell of one channel as CSV, one row per ping and
// depth bin. minDepth and maxDepth, when set, restrict the depth bins to
// [minDepth, maxDepth]. Missing Sv is an empty cell.
func (s *Service) Transect(channel int, minDepth, maxDepth *float64, w io.Writer) error {
	if minDepth != nil && maxDepth != nil && *minDepth > *maxDepth {
		return newError(KindInvalidParameter, "minDepth (%v) is greater than maxDepth (%v)", *minDepth, *maxDepth)
	}
	for _, b := range []*float64{minDepth, maxDepth} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return newError(KindInvalidParameter, "depth bounds must be finite")
		}
	}
	d, err := s.dataset()
	if err != nil {
		return err
	}
	if channel < 0 || channel >= d.NumChannels() {
		return classify(&selector.IndexOutOfRangeError{Dimension: "channel", Index: channel, Length: d.NumChannels()})
	}

	var bins []int
	for i, r := range d.EchoRange() {
		if minDepth != nil && r < *minDepth {
			continue
		}
		if maxDepth != nil && r > *maxDepth {
			continue
		}
		bins = append(bins, i)
	}

	label := d.Channels()[channel]
	depths := make([]string, len(d.EchoRange()))
	for i, r := range d.EchoRange() {
		depths[i] = strconv.FormatFloat(r, 'f', -1, 64)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(TransectHeader); err != nil {
		return classify(err)
	}
	row := make([]string, 4)
	for p, t := range d.PingTimes() {
		row[0] = t.UTC().Format(time.RFC3339Nano)
		row[1] = label
		profile := d.Profile(channel, p)
		for _, i := range bins {
			row[2] = depths[i]
			row[3] = ""
			if sv := profile[i]; !math.IsNaN(sv) && !math.IsInf(sv, 0) {
				row[3] = strconv.FormatFloat(sv, 'g', -1, 64)
			}
			if err := cw.Write(row); err != nil {
				return classify(err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return classify(err)
	}
	s.logger.Debugw("transect written", "channel", label, "pings", d.NumPings(), "bins", len(bins))
	return nil
}
