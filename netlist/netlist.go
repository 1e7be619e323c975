// Package netlist keeps a set of networks which threat sources are
// ignored from.
//
// Entries can be CIDRs (10.0.0.0/8, 2001:db8::/32), single addresses or
// IPv4 ranges (192.0.2.1-192.0.2.50).
package netlist

import (
	"bytes"
	"net"
	"strings"

	cidrman "github.com/EvilSuperstars/go-cidrman"
	"github.com/asergeyev/nradix"
	log "github.com/sirupsen/logrus"

	"github.com/juju/errors"
)

// ErrBadEntry is returned if an entry cannot be parsed.
var ErrBadEntry = errors.New("incorrect network")

// List is a set of networks. A nil list contains nothing.
type List struct {
	tree *nradix.Tree
	size int
}

// Contains tells if ip belongs to any network of the list.
func (l *List) Contains(ip net.IP) bool {
	if l == nil || l.size == 0 {
		return false
	}

	var cidr string
	if v4 := ip.To4(); v4 != nil {
		cidr = v4.String() + "/32"
	} else {
		cidr = ip.String() + "/128"
	}

	value, err := l.tree.FindCIDR(cidr)

	return err == nil && value != nil
}

// Len returns a number of CIDRs in the list. Ranges are split into
// several CIDRs.
func (l *List) Len() int {
	if l == nil {
		return 0
	}

	return l.size
}

func (l *List) add(entry string) error {
	subnets, err := entrySubnets(entry)
	if err != nil {
		return err
	}

	for _, cidr := range subnets {
		if err := l.tree.AddCIDR(cidr, entry); err != nil {
			if err == nradix.ErrNodeBusy {
				log.WithFields(log.Fields{
					"cidr":  cidr,
					"entry": entry,
				}).Debug("Network is already in the list.")

				continue
			}

			return errors.Annotatef(ErrBadEntry, "%s: %v", entry, err)
		}

		l.size++
	}

	return nil
}

func entrySubnets(entry string) ([]string, error) {
	switch {
	case strings.Contains(entry, "-"):
		return rangeSubnets(entry)
	case strings.Contains(entry, "/"):
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, errors.Annotatef(ErrBadEntry, "%s: %v", entry, err)
		}

		return []string{network.String()}, nil
	}

	ip := net.ParseIP(entry)
	switch {
	case ip == nil:
		return nil, errors.Annotatef(ErrBadEntry, "%s", entry)
	case ip.To4() != nil:
		return []string{ip.To4().String() + "/32"}, nil
	}

	return []string{ip.String() + "/128"}, nil
}

func rangeSubnets(entry string) (subnets []string, err error) {
	chunks := strings.SplitN(entry, "-", 2)
	startIP := net.ParseIP(strings.TrimSpace(chunks[0])).To4()
	finishIP := net.ParseIP(strings.TrimSpace(chunks[1])).To4()

	if startIP == nil || finishIP == nil {
		return nil, errors.Annotatef(ErrBadEntry, "%s: only IPv4 ranges are supported", entry)
	}

	if bytes.Compare(startIP, finishIP) > 0 {
		return nil, errors.Annotatef(ErrBadEntry, "%s: range is reversed", entry)
	}

	defer func() {
		if rec := recover(); rec != nil {
			subnets = nil
			err = errors.Annotatef(ErrBadEntry, "%s: %v", entry, rec)
		}
	}()

	subnets, err = cidrman.IPRangeToCIDRs(startIP.String(), finishIP.String())
	if err != nil {
		return nil, errors.Annotatef(ErrBadEntry, "%s: %v", entry, err)
	}

	return subnets, nil
}

// New builds a list of the given entries.
func New(entries []string) (*List, error) {
	rv := &List{tree: nradix.NewTree(0)}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if err := rv.add(entry); err != nil {
			return nil, err
		}
	}

	return rv, nil
}
