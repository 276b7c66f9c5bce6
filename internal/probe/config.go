package probe

import "time"

// Config holds the configuration for the ICMP prober.
// Config is passed as a constructor argument — no file I/O in this package.
type Config struct {
	// Privileged selects raw ICMP sockets instead of unprivileged ICMP
	// datagram sockets. Raw sockets require CAP_NET_RAW.
	Privileged bool `yaml:"privileged"`
}

// DefaultTimeout bounds a probe whose caller passes no timeout.
const DefaultTimeout = 3 * time.Second
