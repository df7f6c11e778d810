package geometry

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

// aoiNamespace scopes name-based AOI identifiers.
var aoiNamespace = uuid.MustParse("6f1c1c8e-4b8e-5d6a-9a53-0b7e3f2d4a10")

// keyScale rounds coordinates to 1e-9 degrees before hashing.
const keyScale = 1e9

// Canonicalize rotates every ring to start at its smallest vertex, orders
// holes within each polygon and orders polygons by their shells. Rings must
// already be closed and oriented.
func Canonicalize(mp model.MultiPolygon) model.MultiPolygon {
	out := make(model.MultiPolygon, len(mp))
	for i, poly := range mp {
		np := make(model.Polygon, len(poly))
		for j, r := range poly {
			np[j] = rotateRing(r)
		}
		if len(np) > 2 {
			holes := np[1:]
			sort.SliceStable(holes, func(a, b int) bool { return lessCoord(holes[a][0], holes[b][0]) })
		}
		out[i] = np
	}
	sort.SliceStable(out, func(a, b int) bool { return lessCoord(out[a][0][0], out[b][0][0]) })
	return out
}

func rotateRing(r model.Ring) model.Ring {
	n := len(r) - 1
	if n < 1 {
		return append(model.Ring(nil), r...)
	}
	best := 0
	for i := 1; i < n; i++ {
		if lessCoord(r[i], r[best]) {
			best = i
		}
	}
	out := make(model.Ring, 0, n+1)
	out = append(out, r[best:n]...)
	out = append(out, r[:best]...)
	return append(out, out[0])
}

func lessCoord(a, b model.Coord) bool {
	if a.Lon != b.Lon {
		return a.Lon < b.Lon
	}
	return a.Lat < b.Lat
}

// Key hashes canonical rings; equal AOIs within 1e-9 degrees share a key.
func Key(mp model.MultiPolygon) string {
	h := xxhash.New()
	var buf [8]byte
	put := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	put(int64(len(mp)))
	for _, poly := range mp {
		put(int64(len(poly)))
		for _, r := range poly {
			put(int64(len(r)))
			for _, c := range r {
				put(int64(math.Round(c.Lon * keyScale)))
				put(int64(math.Round(c.Lat * keyScale)))
			}
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func AOIID(key string) string {
	return uuid.NewSHA1(aoiNamespace, []byte(key)).String()
}
