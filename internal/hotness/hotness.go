// Package hotness tracks how often AOI regions are requested.
package hotness

type Interface interface {
	Inc(key string)
	Score(key string) float64
	Reset(keys ...string)
}
