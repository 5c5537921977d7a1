package domain

import "strings"

// ICEServer describes one relay-capable (or STUN-only) network path used
// to construct a peer connection.
type ICEServer struct {
	URLs       []string `json:"urls" mapstructure:"urls"`
	Username   string   `json:"username,omitempty" mapstructure:"username"`
	Credential string   `json:"credential,omitempty" mapstructure:"credential"`
}

// IsRelay reports whether the server can relay traffic (TURN), which is
// what the relay-only fallback strategy needs.
func (s ICEServer) IsRelay() bool {
	for _, u := range s.URLs {
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}

// RelayOnly filters servers down to the relay-capable subset.
func RelayOnly(servers []ICEServer) []ICEServer {
	out := make([]ICEServer, 0, len(servers))
	for _, s := range servers {
		if s.IsRelay() {
			out = append(out, s)
		}
	}
	return out
}
