// Package sysinfo reports build and host facts relevant to ICMP probing.
package sysinfo

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// Version is the pinger version, set at build time via ldflags.
	// Example: go build -ldflags="-X github.com/postalsys/pinger/internal/sysinfo.Version=1.0.0"
	Version = "dev"

	startTime     time.Time
	startTimeOnce sync.Once
)

func init() {
	startTimeOnce.Do(func() {
		startTime = time.Now()
	})
	if Version == "dev" {
		Version = enhanceDevVersion()
	}
}

// Info describes the running binary and its host.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Hostname  string `json:"hostname"`
	StartTime int64  `json:"start_time"`

	// ICMP describes whether this process may open unprivileged ICMP
	// sockets.
	ICMP ICMPAccess `json:"icmp"`
}

// ICMPAccess is the unprivileged ICMP socket permission of this process.
type ICMPAccess struct {
	// Supported is false when it cannot be determined, e.g. on platforms
	// without ping_group_range.
	Supported bool `json:"supported"`
	Allowed   bool `json:"allowed"`

	// GroupRange is the raw ping_group_range value on Linux.
	GroupRange string `json:"group_range,omitempty"`
}

// Collect gathers local system information.
func Collect() Info {
	hostname, _ := os.Hostname()

	return Info{
		Version:   Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Hostname:  hostname,
		StartTime: startTime.Unix(),
		ICMP:      CheckICMP(),
	}
}

// StartTime returns the process start time.
func StartTime() time.Time {
	return startTime
}

// Uptime returns the process uptime.
func Uptime() time.Duration {
	return time.Since(startTime)
}

// UptimeSeconds returns the process uptime in seconds.
func UptimeSeconds() int64 {
	return int64(Uptime().Seconds())
}

// ParseGroupRange parses a ping_group_range value, two group IDs separated
// by whitespace.
func ParseGroupRange(s string) (lo, hi uint32, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("malformed group range %q", s)
	}

	l, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed group range %q: %w", s, err)
	}
	h, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed group range %q: %w", s, err)
	}
	return uint32(l), uint32(h), nil
}

// GroupsAllowed reports whether any of gids falls in [lo, hi]. The kernel
// disables unprivileged ICMP entirely when lo > hi (the default "1 0").
func GroupsAllowed(lo, hi uint32, gids []int) bool {
	if lo > hi {
		return false
	}
	for _, g := range gids {
		if g >= 0 && uint32(g) >= lo && uint32(g) <= hi {
			return true
		}
	}
	return false
}

func processGroups() []int {
	gids, _ := os.Getgroups()
	return append(gids, os.Getgid())
}

// enhanceDevVersion derives a dev version from VCS build info:
// dev-<commit>, dev-<commit>-dirty, or dev-<timestamp> as a fallback.
func enhanceDevVersion() string {
	info, ok := debug.ReadBuildInfo()
	if ok {
		var revision string
		var dirty bool
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.modified":
				dirty = s.Value == "true"
			}
		}
		if revision != "" {
			if len(revision) > 7 {
				revision = revision[:7]
			}
			if dirty {
				return "dev-" + revision + "-dirty"
			}
			return "dev-" + revision
		}
	}
	return "dev-" + startTime.Format("20060102-150405")
}
