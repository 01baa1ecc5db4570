package geo

import (
	"math"
	"sort"
	"sync"

	"github.com/tyreaid/roadaid/core/model"
)

// kmPerDegreeLat is the approximate north-south extent of one degree of
// latitude, used only to size grid cells.
const kmPerDegreeLat = 111.0

// Index keeps the provider registry together with a spatial grid over
// provider locations. Queries may observe a slightly stale view while a
// relocation is in flight; readers are never blocked for the duration of a
// full rebuild.
type Index struct {
	mu       sync.RWMutex
	cellDeg  float64
	byID     map[string]model.Provider
	cells    map[cellKey]map[string]struct{}
	maxRadii float64
}

type cellKey struct {
	lat int
	lon int
}

// NewIndex creates an Index with the given grid cell size in degrees. A
// non-positive size falls back to 0.5 degrees (roughly 55 km of latitude).
func NewIndex(cellSizeDeg float64) *Index {
	if cellSizeDeg <= 0 {
		cellSizeDeg = 0.5
	}
	return &Index{
		cellDeg: cellSizeDeg,
		byID:    make(map[string]model.Provider),
		cells:   make(map[cellKey]map[string]struct{}),
	}
}

func (i *Index) cellFor(l model.Location) cellKey {
	return cellKey{
		lat: int(math.Floor(l.Lat / i.cellDeg)),
		lon: wrapLonCell(int(math.Floor(l.Lon/i.cellDeg)), i.lonCellCount()),
	}
}

// lonCellCount is the number of distinct longitude columns in the grid.
func (i *Index) lonCellCount() int {
	n := int(math.Ceil(360 / i.cellDeg))
	if n < 1 {
		n = 1
	}
	return n
}

// wrapLonCell folds a longitude cell index into [0, n) so that columns on
// either side of the antimeridian are neighbours. Longitude 180 and -180 land
// in the same column.
func wrapLonCell(idx, n int) int {
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

// Upsert registers the provider or moves it to its new location.
func (i *Index) Upsert(p model.Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if prev, ok := i.byID[p.ID]; ok {
		i.removeFromCell(prev)
	}
	i.byID[p.ID] = p
	key := i.cellFor(p.Location)
	if i.cells[key] == nil {
		i.cells[key] = make(map[string]struct{})
	}
	i.cells[key][p.ID] = struct{}{}
	if p.RadiusKm > i.maxRadii {
		i.maxRadii = p.RadiusKm
	}
	return nil
}

// Remove drops the provider from the registry and the grid. Removing an
// unknown id is a no-op.
func (i *Index) Remove(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	p, ok := i.byID[id]
	if !ok {
		return
	}
	i.removeFromCell(p)
	delete(i.byID, id)
}

func (i *Index) removeFromCell(p model.Provider) {
	key := i.cellFor(p.Location)
	if set, ok := i.cells[key]; ok {
		delete(set, p.ID)
		if len(set) == 0 {
			delete(i.cells, key)
		}
	}
}

// Get returns the registered provider, if any.
func (i *Index) Get(id string) (model.Provider, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	p, ok := i.byID[id]
	return p, ok
}

// Snapshot returns all registered providers ordered by id.
func (i *Index) Snapshot() []model.Provider {
	i.mu.RLock()
	defer i.mu.RUnlock()
	res := make([]model.Provider, 0, len(i.byID))
	for _, p := range i.byID {
		res = append(res, p)
	}
	sort.Slice(res, func(a, b int) bool { return res[a].ID < res[b].ID })
	return res
}

// Covering returns every active provider whose service circle contains the
// point. Only the grid cells a provider circle could reach are scanned, so the
// cost scales with local density rather than total provider count.
func (i *Index) Covering(point model.Location) []model.Provider {
	i.mu.RLock()
	defer i.mu.RUnlock()

	latSpan := int(math.Ceil(i.maxRadii/(kmPerDegreeLat*i.cellDeg))) + 1
	// Longitude degrees shrink towards the poles, widen the scan accordingly.
	cosLat := math.Cos(point.Lat * math.Pi / 180)
	if cosLat < 0.1 {
		cosLat = 0.1
	}
	lonSpan := int(math.Ceil(i.maxRadii/(kmPerDegreeLat*i.cellDeg*cosLat))) + 1
	center := i.cellFor(point)
	n := i.lonCellCount()

	var res []model.Provider
	for dl := -latSpan; dl <= latSpan; dl++ {
		lo, hi := -lonSpan, lonSpan
		if hi-lo+1 >= n {
			// The scan is wider than the grid; visit each column once.
			lo, hi = 0, n-1
		}
		for dn := lo; dn <= hi; dn++ {
			set, ok := i.cells[cellKey{lat: center.lat + dl, lon: wrapLonCell(center.lon+dn, n)}]
			if !ok {
				continue
			}
			for id := range set {
				p := i.byID[id]
				if !p.Active {
					continue
				}
				if Within(p.Location, p.RadiusKm, point) {
					res = append(res, p)
				}
			}
		}
	}
	sort.Slice(res, func(a, b int) bool { return res[a].ID < res[b].ID })
	return res
}
