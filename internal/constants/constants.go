// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// Default colour scale bounds for echograms, in dB.
const (
	DefaultVMin = -80.0
	DefaultVMax = -30.0
)

// EchogramColors is the Sv colour map, weakest to strongest return.
var EchogramColors = []string{
	"#FFFFFF", "#9F9F9F", "#5F5F5F",
	"#0000FF", "#00007F", "#00BF00",
	"#007F00", "#FFFF00", "#FF7F00",
	"#FF00BF", "#FF0000", "#A6533C", "#783C28",
}
