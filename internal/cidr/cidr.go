// Package cidr validates and allocates IPv4 subnet blocks inside a parent block.
package cidr

import (
	"encoding/binary"
	"net/netip"
	"sort"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Parse parses a canonical IPv4 prefix such as "172.16.0.0/16".
func Parse(s string) (netip.Prefix, error) {
	if s == "" {
		return netip.Prefix{}, topoerr.Configf("empty CIDR block")
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, topoerr.Configf("malformed CIDR block %q: %v", s, err)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, topoerr.Configf("CIDR block %q is not IPv4", s)
	}
	if p.Masked() != p {
		return netip.Prefix{}, topoerr.Configf("CIDR block %q has host bits set (did you mean %s?)", s, p.Masked())
	}
	return p, nil
}

// ParseAll parses every block in order.
func ParseAll(blocks []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, len(blocks))
	for i, b := range blocks {
		p, err := Parse(b)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Validate checks that every block lies inside parent and that no two blocks
// overlap. Blocks are sorted by start address and each block's last address
// must come strictly before the next block's first.
func Validate(parent netip.Prefix, blocks []netip.Prefix) error {
	for _, b := range blocks {
		if !Contains(parent, b) {
			return topoerr.Exhaustedf("block %s is outside %s", b, parent)
		}
	}

	sorted := make([]netip.Prefix, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		if c := sorted[i].Addr().Compare(sorted[j].Addr()); c != 0 {
			return c < 0
		}
		return sorted[i].Bits() < sorted[j].Bits()
	})

	for i := 0; i+1 < len(sorted); i++ {
		if last(sorted[i]) >= first(sorted[i+1]) {
			return topoerr.Exhaustedf("block %s overlaps %s", sorted[i], sorted[i+1])
		}
	}
	return nil
}

// Contains reports whether child is a sub-range of parent.
func Contains(parent, child netip.Prefix) bool {
	return child.Addr().Is4() && parent.Bits() <= child.Bits() && parent.Contains(child.Addr())
}

// Allocate carves blocks of the requested prefix lengths out of parent, in the
// order requested. Each block is aligned to its own size.
func Allocate(parent netip.Prefix, sizes []int) ([]netip.Prefix, error) {
	start := uint64(first(parent))
	end := uint64(last(parent)) + 1

	cursor := start
	out := make([]netip.Prefix, 0, len(sizes))
	for _, bits := range sizes {
		if bits < parent.Bits() || bits > 32 {
			return nil, topoerr.Exhaustedf("a /%d block does not fit in %s", bits, parent)
		}
		size := uint64(1) << (32 - bits)
		if rem := cursor % size; rem != 0 {
			cursor += size - rem
		}
		if cursor+size > end {
			return nil, topoerr.Exhaustedf("no room for a /%d block in %s", bits, parent)
		}
		out = append(out, netip.PrefixFrom(fromUint32(uint32(cursor)), bits))
		cursor += size
	}

	if err := Validate(parent, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Size returns the number of addresses in p.
func Size(p netip.Prefix) uint64 {
	return uint64(1) << (32 - p.Bits())
}

func first(p netip.Prefix) uint32 {
	a := p.Masked().Addr().As4()
	return binary.BigEndian.Uint32(a[:])
}

func last(p netip.Prefix) uint32 {
	return first(p) | uint32(Size(p)-1)
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
