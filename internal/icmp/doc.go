// Package icmp sends single ICMP echo probes over unprivileged datagram
// sockets and measures their round-trip time.
//
// # Lifecycle
//
// A Manager owns a Registry mapping each open socket Handle to its fixed
// destination Binding:
//
//  1. Open allocates a socket, sets its TTL and receive timeout, parses the
//     numeric IPv4 destination and registers the binding
//  2. Probe builds one echo request, sends it to the bound destination and
//     waits for one datagram, returning a Result
//  3. Close shuts the socket down, closes it and drops the binding
//
// Probe never retries. Any datagram received on the socket within the
// timeout counts as the reply; it is decoded for reporting only.
//
// # Unprivileged ICMP Sockets
//
// On Linux, unprivileged ICMP requires the ping_group_range sysctl:
//
//	sysctl -w net.ipv4.ping_group_range="0 65535"
//
// Linux also rewrites the echo identifier with the socket's local port.
//
// # Legacy Codes
//
// Result.Code maps outcomes onto the integer contract used by older callers:
// elapsed milliseconds, -1 for send or socket errors and -2 for timeouts.
package icmp
