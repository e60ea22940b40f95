package audio

import "runtime"

// Container describes the file format a recording is written in
type Container struct {
	Extension string
	// Format and Encoder are the platform media codes passed in RecorderOptions
	Format  int
	Encoder int
}

// Android MediaRecorder raw values, used for the m4a container
const (
	formatMPEG4 = 2
	encoderAAC  = 3
)

var (
	ContainerM4A  = Container{Extension: "m4a", Format: formatMPEG4, Encoder: encoderAAC}
	ContainerCAF  = Container{Extension: "caf"}
	ContainerFLAC = Container{Extension: "flac"}
)

// PlatformContainer returns the recording container for goos. Apple platforms
// record to caf, everything else to m4a.
func PlatformContainer(goos string) Container {
	switch goos {
	case "darwin", "ios":
		return ContainerCAF
	default:
		return ContainerM4A
	}
}

// ResolveContainer applies a configured format override on top of the
// platform default for the running OS
func ResolveContainer(format string) Container {
	switch format {
	case "m4a":
		return ContainerM4A
	case "caf":
		return ContainerCAF
	case "flac":
		return ContainerFLAC
	}
	return PlatformContainer(runtime.GOOS)
}
