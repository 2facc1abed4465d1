package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// Link is the host side of the network association.
type Link interface {
	// Associate starts joining the network. It may return before the
	// link is usable.
	Associate(ctx context.Context, ssid, password string) error

	// IsConnected reports whether the link is usable.
	IsConnected() bool
}

// NoneLink is a Link for hosts whose network is managed elsewhere.
// It is always connected.
type NoneLink struct{}

// Associate does nothing.
func (NoneLink) Associate(context.Context, string, string) error { return nil }

// IsConnected always returns true.
func (NoneLink) IsConnected() bool { return true }

// InterfaceLink watches a named interface for a routable address.
//
// If Command is set it is run once by Associate after placeholder
// substitution, e.g. ["nmcli", "dev", "wifi", "connect", "{ssid}",
// "password", "{password}", "ifname", "{interface}"].
type InterfaceLink struct {
	Name    string
	Command []string

	// lookup resolves the interface; nil means net.InterfaceByName.
	lookup func(name string) (*net.Interface, error)
	// addrs lists interface addresses; nil means (*net.Interface).Addrs.
	addrs func(iface *net.Interface) ([]net.Addr, error)
}

// NewInterfaceLink creates a link for the named interface.
func NewInterfaceLink(name string, command []string) *InterfaceLink {
	return &InterfaceLink{Name: name, Command: command}
}

// Associate runs the association command, if any.
func (l *InterfaceLink) Associate(ctx context.Context, ssid, password string) error {
	if len(l.Command) == 0 {
		return nil
	}

	args := expandCommand(l.Command, commandReplacer(ssid, password, l.Name))

	// #nosec G204 -- command comes from the operator's config file
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// IsConnected reports whether the interface is up with a global unicast address.
func (l *InterfaceLink) IsConnected() bool {
	lookup := l.lookup
	if lookup == nil {
		lookup = net.InterfaceByName
	}
	addrs := l.addrs
	if addrs == nil {
		addrs = (*net.Interface).Addrs
	}

	iface, err := lookup(l.Name)
	if err != nil || iface.Flags&net.FlagUp == 0 {
		return false
	}

	list, err := addrs(iface)
	if err != nil {
		return false
	}
	for _, a := range list {
		if ipn, ok := a.(*net.IPNet); ok && ipn.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

// commandReplacer substitutes the association placeholders in a single
// pass, so placeholder text inside a substituted value stays literal.
func commandReplacer(ssid, password, iface string) *strings.Replacer {
	return strings.NewReplacer(
		"{ssid}", ssid,
		"{password}", password,
		"{interface}", iface,
	)
}

// expandCommand substitutes placeholders in every argument.
func expandCommand(command []string, r *strings.Replacer) []string {
	out := make([]string, len(command))
	for i, arg := range command {
		out[i] = r.Replace(arg)
	}
	return out
}
