package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is a cook target or the machine the cooker runs on.
type Platform uint8

const (
	PlatformUnknown Platform = iota
	PlatformWindows
	PlatformUWP
	PlatformLinux
	PlatformMac
	PlatformAndroid
	PlatformIOS
	PlatformGDK
)

var platformNames = map[Platform]string{
	PlatformWindows: "Windows",
	PlatformUWP:     "UWP",
	PlatformLinux:   "Linux",
	PlatformMac:     "Mac",
	PlatformAndroid: "Android",
	PlatformIOS:     "iOS",
	PlatformGDK:     "GDK",
}

func (p Platform) String() string {
	if n, ok := platformNames[p]; ok {
		return n
	}
	return "Unknown"
}

// ParsePlatform matches a platform name case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	for p, n := range platformNames {
		if strings.EqualFold(n, s) {
			return p, nil
		}
	}
	return PlatformUnknown, fmt.Errorf("unknown platform %q", s)
}

// IsMobile reports whether the platform runs the Mono-based mobile runtime.
func (p Platform) IsMobile() bool {
	return p == PlatformAndroid || p == PlatformIOS
}

// IsDesktop reports whether the platform can host the build tools.
func (p Platform) IsDesktop() bool {
	return p == PlatformWindows || p == PlatformLinux || p == PlatformMac
}

// Architecture is the CPU architecture of a target.
type Architecture uint8

const (
	ArchAnyCPU Architecture = iota
	ArchX86
	ArchX64
	ArchARM
	ArchARM64
)

var archNames = map[Architecture]string{
	ArchAnyCPU: "AnyCPU",
	ArchX86:    "x86",
	ArchX64:    "x64",
	ArchARM:    "ARM",
	ArchARM64:  "ARM64",
}

func (a Architecture) String() string {
	return archNames[a]
}

// ParseArchitecture matches an architecture name case-insensitively.
func ParseArchitecture(s string) (Architecture, error) {
	for a, n := range archNames {
		if strings.EqualFold(n, s) {
			return a, nil
		}
	}
	return ArchAnyCPU, fmt.Errorf("unknown architecture %q", s)
}

// Configuration is the build configuration of the cooked game.
type Configuration uint8

const (
	ConfigurationDebug Configuration = iota
	ConfigurationDevelopment
	ConfigurationRelease
)

func (c Configuration) String() string {
	switch c {
	case ConfigurationDebug:
		return "Debug"
	case ConfigurationDevelopment:
		return "Development"
	default:
		return "Release"
	}
}

// ParseConfiguration matches a configuration name case-insensitively.
func ParseConfiguration(s string) (Configuration, error) {
	for _, c := range []Configuration{ConfigurationDebug, ConfigurationDevelopment, ConfigurationRelease} {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}
	return ConfigurationRelease, fmt.Errorf("unknown configuration %q", s)
}

// Host returns the platform the cooker is running on.
func Host() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	case "linux":
		return PlatformLinux
	}
	return PlatformUnknown
}

// HostArchitecture returns the CPU architecture of the cooker process.
func HostArchitecture() Architecture {
	switch runtime.GOARCH {
	case "amd64":
		return ArchX64
	case "386":
		return ArchX86
	case "arm":
		return ArchARM
	case "arm64":
		return ArchARM64
	}
	return ArchAnyCPU
}
