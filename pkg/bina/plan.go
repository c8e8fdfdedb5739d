package bina

import "github.com/EchoTools/pacFileTools/pkg/split"

// PlanSplit distributes items over fragments holding at most limit payload
// bytes each, keeping the caller's order. It returns nil when everything fits
// one file. proxies holds a not-here stand-in for every item, which the root
// file lists so loaders can tell which fragment entries to expect.
func PlanSplit(items []Item, limit uint64) (fragments [][]Item, proxies []Item) {
	if limit == 0 || len(items) == 0 {
		return nil, nil
	}
	sizes := make([]uint64, len(items))
	for i, it := range items {
		sizes[i] = it.PayloadSize()
	}
	groups := split.Partition(sizes, limit)
	if len(groups) < 2 {
		return nil, nil
	}
	fragments = make([][]Item, len(groups))
	for gi, g := range groups {
		for _, i := range g {
			fragments[gi] = append(fragments[gi], items[i])
		}
	}
	proxies = make([]Item, len(items))
	for i, it := range items {
		proxies[i] = Item{Name: it.Name, Proxy: true, Size: it.PayloadSize()}
	}
	return fragments, proxies
}
