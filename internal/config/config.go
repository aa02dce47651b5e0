// Package config resolves the server's startup configuration from CLI flags
// and environment variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultPort      = 8080
	defaultStunURL   = "stun:stun.l.google.com:19302"
	defaultStaticDir = "./static"
)

// Config is the fully resolved startup configuration.
type Config struct {
	// Port is the HTTP bind port for the signaling surface.
	Port uint16
	// UDPMuxPort, if non-zero, multiplexes all ICE UDP traffic over a
	// single 0.0.0.0 port instead of letting each PeerConnection pick its
	// own ephemeral sockets.
	UDPMuxPort uint16
	// NATIPs are external IPs advertised as host candidates for 1:1 NAT.
	NATIPs []string
	// StaticDir holds the viewer web app: "/" serves its index.html and its
	// files are served under "/static"; other root paths are not served
	// from it.
	StaticDir string
	// ICEServers is the STUN/TURN server list advertised to clients and
	// used by the server's own peer connections.
	ICEServers []string
}

// Load parses args (excluding the program name, e.g. os.Args[1:]) against
// environment fallbacks and returns the resolved configuration.
//
// Precedence is flag > environment > default, matching the CLI contract in
// the project specification: PORT, UDP_MUX_PORT and NAT_IPS are read first
// so an unset flag still picks up the environment's value.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("whip-relay", flag.ContinueOnError)

	cfg := Config{
		StaticDir:  defaultStaticDir,
		ICEServers: []string{defaultStunURL},
	}

	port := envUint16("PORT", defaultPort)
	udpMuxPort := envUint16("UDP_MUX_PORT", 0)
	natIPs := envString("NAT_IPS", "")

	registerUint16Flag(fs, &port, "p", "port", "HTTP bind port")
	registerUint16Flag(fs, &udpMuxPort, "u", "udp-mux-port", "multiplex all ICE UDP traffic over this single port")
	registerStringFlag(fs, &natIPs, "i", "nat-ips", "comma-separated external IPs advertised for NAT 1:1")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg.Port = port
	cfg.UDPMuxPort = udpMuxPort
	cfg.NATIPs = splitNonEmpty(natIPs)

	return cfg, nil
}

// registerUint16Flag binds both a short and a long flag name to the same
// variable, the stdlib idiom for a short alias without a third-party flags
// package.
func registerUint16Flag(fs *flag.FlagSet, dst *uint16, short, long, usage string) {
	value := uint16Value{dst}
	fs.Var(&value, short, usage)
	fs.Var(&value, long, usage)
}

func registerStringFlag(fs *flag.FlagSet, dst *string, short, long, usage string) {
	fs.StringVar(dst, short, *dst, usage)
	fs.StringVar(dst, long, *dst, usage)
}

type uint16Value struct {
	dst *uint16
}

func (v *uint16Value) String() string {
	if v.dst == nil {
		return "0"
	}
	return strconv.Itoa(int(*v.dst))
}

func (v *uint16Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", s, err)
	}
	*v.dst = uint16(n)
	return nil
}

func envUint16(name string, fallback uint16) uint16 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return fallback
	}
	return uint16(n)
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
