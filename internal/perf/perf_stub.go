//go:build !linux || !perf

package perf

func hardwareSource() Source {
	return Unavailable{}
}
