//go:build linux

package sysinfo

import (
	"os"
	"strings"
)

const pingGroupRangePath = "/proc/sys/net/ipv4/ping_group_range"

// CheckICMP reads net.ipv4.ping_group_range and matches it against the
// process groups.
func CheckICMP() ICMPAccess {
	data, err := os.ReadFile(pingGroupRangePath)
	if err != nil {
		return ICMPAccess{}
	}

	raw := strings.TrimSpace(string(data))
	lo, hi, err := ParseGroupRange(raw)
	if err != nil {
		return ICMPAccess{GroupRange: raw}
	}

	return ICMPAccess{
		Supported:  true,
		Allowed:    GroupsAllowed(lo, hi, processGroups()),
		GroupRange: raw,
	}
}
