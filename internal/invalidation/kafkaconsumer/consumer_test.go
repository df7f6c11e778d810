package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/invalidation"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
)

type versionSource struct {
	mu    sync.Mutex
	ver   uint64
	loads atomic.Int32
	fail  atomic.Bool
}

func (s *versionSource) Name() string { return "versions" }

func (s *versionSource) Load(context.Context) (refdata.Dataset, error) {
	s.loads.Add(1)
	if s.fail.Load() {
		return refdata.Dataset{}, errors.New("source unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return refdata.Dataset{Versions: map[model.LayerKind]uint64{model.LayerSoil: s.ver}}, nil
}

func (s *versionSource) publish(v uint64) {
	s.mu.Lock()
	s.ver = v
	s.mu.Unlock()
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "data-versions" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(layer string, v uint64) []byte {
	b, _ := json.Marshal(invalidation.Event{Version: v, Layer: layer, TS: time.Now().UTC()})
	return b
}

func msgAt(off int64, value []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "data-versions", Partition: 0, Offset: off, Value: value}
}

func newConsumerForTest(t *testing.T, initial uint64) (*Consumer, *versionSource, *refdata.Manager) {
	t.Helper()
	src := &versionSource{ver: initial}
	mgr := refdata.NewManager(src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := mgr.Reload(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	cfg := DefaultConfig()
	cfg.DedupeSize = 16
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), mgr), src, mgr
}

func TestProcessOne_NewVersionReloads(t *testing.T) {
	c, src, mgr := newConsumerForTest(t, 1)
	var swaps atomic.Int32
	mgr.OnSwap(func(old, cur *refdata.Snapshot) { swaps.Add(1) })

	src.publish(2)
	if err := c.ProcessOne(context.Background(), msgAt(1, eventBytes("soil", 2))); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if mgr.Current().Generation != 2 || mgr.Current().Version(model.LayerSoil) != 2 {
		t.Fatalf("generation=%d version=%d", mgr.Current().Generation, mgr.Current().Version(model.LayerSoil))
	}
	if swaps.Load() != 1 {
		t.Fatalf("swap hooks=%d want 1", swaps.Load())
	}
}

func TestProcessOne_StaleAndDuplicateIgnored(t *testing.T) {
	c, src, mgr := newConsumerForTest(t, 3)
	loads := src.loads.Load()

	// already loaded
	if err := c.ProcessOne(context.Background(), msgAt(1, eventBytes("soil", 3))); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	src.publish(5)
	if err := c.ProcessOne(context.Background(), msgAt(2, eventBytes("soil", 5))); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	// replay and older versions
	for i, v := range []uint64{5, 4} {
		if err := c.ProcessOne(context.Background(), msgAt(int64(3+i), eventBytes("soil", v))); err != nil {
			t.Fatalf("ProcessOne: %v", err)
		}
	}
	if got := src.loads.Load() - loads; got != 1 {
		t.Fatalf("reloads=%d want 1", got)
	}
	if mgr.Current().Generation != 2 {
		t.Fatalf("generation=%d want 2", mgr.Current().Generation)
	}
}

func TestProcessOne_MalformedSkipped(t *testing.T) {
	c, src, _ := newConsumerForTest(t, 1)
	loads := src.loads.Load()
	for _, body := range [][]byte{[]byte("{not json"), eventBytes("elevation", 9), eventBytes("soil", 0)} {
		if err := c.ProcessOne(context.Background(), msgAt(1, body)); err != nil {
			t.Fatalf("malformed event should be skipped, got %v", err)
		}
	}
	if src.loads.Load() != loads {
		t.Fatalf("malformed events must not reload")
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	c, src, _ := newConsumerForTest(t, 1)
	src.publish(2)
	src.fail.Store(true)

	msg := msgAt(5, eventBytes("soil", 2))
	s := &sess{ctx: context.Background()}
	g := &groupHandler{process: c.ProcessOne}

	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err == nil {
		t.Fatalf("expected error while the source fails")
	}
	if len(s.marked) != 0 {
		t.Fatalf("failed message must not be marked; marked=%v", s.marked)
	}

	src.fail.Store(false)
	ch = make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}

func TestRetry_InPlaceRecovers(t *testing.T) {
	c, src, mgr := newConsumerForTest(t, 1)
	src.publish(2)
	src.fail.Store(true)

	var calls atomic.Int32
	g := &groupHandler{
		process: func(ctx context.Context, m *sarama.ConsumerMessage) error {
			if calls.Add(1) == 2 {
				src.fail.Store(false)
			}
			return c.ProcessOne(ctx, m)
		},
		attempts: 3,
		backoff:  time.Millisecond,
	}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msgAt(7, eventBytes("soil", 2))
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("attempts=%d want 2", calls.Load())
	}
	if len(s.marked) != 1 || mgr.Current().Version(model.LayerSoil) != 2 {
		t.Fatalf("marked=%v version=%d", s.marked, mgr.Current().Version(model.LayerSoil))
	}
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	c, src, _ := newConsumerForTest(t, 1)
	src.publish(3)

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- msgAt(10, eventBytes("soil", 2))
	ch <- msgAt(11, eventBytes("rainfall", 1))
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
}

func TestMultiPartition_Parallel(t *testing.T) {
	c, src, _ := newConsumerForTest(t, 1)
	src.publish(9)
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- msgAt(1, eventBytes("soil", 2))
	p0 <- msgAt(2, eventBytes("soil", 3))
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 1, Value: eventBytes("rainfall", 2)}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 2, Value: eventBytes("raster", 2)}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestVersionDedupe(t *testing.T) {
	d := newVersionDedupe(2)
	if !d.isNew("soil", 1) {
		t.Fatalf("first version must be new")
	}
	d.record("soil", 3)
	d.record("soil", 2)
	if d.isNew("soil", 3) || !d.isNew("soil", 4) {
		t.Fatalf("record must keep the highest version")
	}
}
