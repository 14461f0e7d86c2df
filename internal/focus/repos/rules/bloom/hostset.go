// Package bloom indexes the hosts that "||host^" rules are pinned to, so a
// navigation to an unrelated host is allowed without evaluating any rule.
package bloom

import (
	"strings"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/utils"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/rules"
)

// hostSet is immutable once built; concurrent MayCover calls need no lock.
type hostSet struct {
	bf *bitsbloom.BloomFilter
	n  int
}

type factory struct{}

// NewFactory returns a HostIndexFactory backed by bloom filters sized for
// the number of distinct hosts.
func NewFactory() rules.HostIndexFactory { return factory{} }

func (factory) New(hosts []string, fpRate float64) rules.HostIndex {
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = rules.DefaultFPRate
	}
	uniq := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h = utils.CanonicalHostName(h); h != "" {
			uniq[h] = struct{}{}
		}
	}
	bf := bitsbloom.NewWithEstimates(uint(max(len(uniq), 1)), fpRate)
	for h := range uniq {
		bf.AddString(h)
	}
	return &hostSet{bf: bf, n: len(uniq)}
}

// MayCover checks host and then each parent domain, so a rule pinned to
// example.com covers www.example.com.
func (s *hostSet) MayCover(host string) bool {
	if s.n == 0 {
		return false
	}
	h := utils.CanonicalHostName(host)
	for h != "" {
		if s.bf.TestString(h) {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			return false
		}
		h = h[i+1:]
	}
	return false
}

// Len returns the number of distinct hosts indexed.
func (s *hostSet) Len() int { return s.n }
