package geometry

import "fmt"

type ErrorKind int

const (
	InvalidRing ErrorKind = iota + 1
	SelfIntersecting
	DegenerateArea
	OutOfBounds
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidRing:
		return "invalid_ring"
	case SelfIntersecting:
		return "self_intersecting"
	case DegenerateArea:
		return "degenerate_area"
	case OutOfBounds:
		return "out_of_bounds"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; they match any GeometryError of the same kind.
var (
	ErrInvalidRing      = &GeometryError{Kind: InvalidRing}
	ErrSelfIntersecting = &GeometryError{Kind: SelfIntersecting}
	ErrDegenerateArea   = &GeometryError{Kind: DegenerateArea}
	ErrOutOfBounds      = &GeometryError{Kind: OutOfBounds}
)

// GeometryError locates a rejected ring by polygon and ring index
// (ring 0 is the shell). Indexes are -1 when the error is not ring specific.
type GeometryError struct {
	Kind    ErrorKind
	Polygon int
	Ring    int
	Detail  string
}

func (e *GeometryError) Error() string {
	if e.Polygon < 0 {
		return fmt.Sprintf("geometry %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("geometry %s (polygon %d, ring %d): %s", e.Kind, e.Polygon, e.Ring, e.Detail)
}

// Is treats SelfIntersecting as a specific InvalidRing.
func (e *GeometryError) Is(target error) bool {
	t, ok := target.(*GeometryError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind || (t.Kind == InvalidRing && e.Kind == SelfIntersecting)
}

func ringErr(kind ErrorKind, poly, ring int, format string, args ...any) *GeometryError {
	return &GeometryError{Kind: kind, Polygon: poly, Ring: ring, Detail: fmt.Sprintf(format, args...)}
}
