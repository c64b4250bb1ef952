package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gmaild/internal/backend"
	"gmaild/internal/logging"
	"gmaild/internal/service"
)

// stubService records call spans and ordering.
type stubService struct {
	registry *service.Registry
	exec     backend.Executor

	mu       sync.Mutex
	order    []string
	active   int
	overlaps int
	maxSeen  int

	gate  chan struct{}
	delay time.Duration
}

func newStubService(t *testing.T) *stubService {
	t.Helper()
	reg, err := service.NewRegistry(
		service.MethodInfo{Name: "gmail.inbox", Params: []service.ParamInfo{{Name: "limit", Default: 10}}},
		service.MethodInfo{Name: "gmail.read", Params: []service.ParamInfo{{Name: "message_id", Required: true}}},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return &stubService{registry: reg}
}

func (s *stubService) Name() string                     { return "stub" }
func (s *stubService) Version() string                  { return "0.0.1" }
func (s *stubService) MethodList() []service.MethodInfo { return s.registry.MethodList() }
func (s *stubService) OnStart(context.Context) error    { return nil }
func (s *stubService) HealthCheck(context.Context) map[string]service.HealthStatus {
	return map[string]service.HealthStatus{"stub": {OK: true}}
}

func (s *stubService) Dispatch(ctx context.Context, method string, params service.Params) (any, error) {
	if _, err := s.registry.Prepare(method, params); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.active++
	if s.active > 1 {
		s.overlaps++
	}
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	if id, ok := params["tag"].(string); ok {
		s.order = append(s.order, id)
	}
	s.mu.Unlock()

	if s.gate != nil {
		<-s.gate
	}
	time.Sleep(s.delay)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	if method == "gmail.read" && params["message_id"] == "boom" {
		return nil, &backend.Error{Kind: backend.KindNonzeroExit, Message: "boom"}
	}
	if params["message_id"] == "plain" {
		return nil, errors.New("plain failure")
	}
	return map[string]any{"method": method}, nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (m *memoryRecorder) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func TestSerialCoreNeverOverlaps(t *testing.T) {
	svc := newStubService(t)
	svc.delay = 3 * time.Millisecond
	core := New(svc, WithSerial(true), WithLogger(logging.NewNop()))
	defer core.Close()

	const calls = 32
	var wg sync.WaitGroup
	var failures atomic.Int64
	for range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := core.Handle(context.Background(), Request{Method: "gmail.inbox"}); resp.Error != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d calls failed", failures.Load())
	}
	if svc.overlaps != 0 || svc.maxSeen != 1 {
		t.Fatalf("serial core overlapped calls: overlaps=%d max=%d", svc.overlaps, svc.maxSeen)
	}
	if stats := core.Stats(); stats.Total != calls || stats.InFlight != 0 || stats.Queued != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSerialCorePreservesArrivalOrder(t *testing.T) {
	svc := newStubService(t)
	svc.gate = make(chan struct{})
	core := New(svc, WithSerial(true))
	defer core.Close()

	tags := []string{"first", "second", "third", "fourth"}
	var wg sync.WaitGroup
	for i, tag := range tags {
		wg.Add(1)
		go func() {
			defer wg.Done()
			core.Handle(context.Background(), Request{Method: "gmail.inbox", Params: service.Params{"tag": tag}})
		}()
		// Wait until this request is running or parked before sending the next.
		deadline := time.Now().Add(2 * time.Second)
		for {
			stats := core.Stats()
			if stats.InFlight+stats.Queued == int64(i+1) {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("request %s never reached the core", tag)
			}
			time.Sleep(time.Millisecond)
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(svc.gate)
	wg.Wait()

	if len(svc.order) != len(tags) {
		t.Fatalf("expected %d calls, got %v", len(tags), svc.order)
	}
	for i := range tags {
		if svc.order[i] != tags[i] {
			t.Fatalf("calls ran out of order: %v", svc.order)
		}
	}
}

func TestParallelCoreAllowsOverlap(t *testing.T) {
	svc := newStubService(t)
	svc.delay = 50 * time.Millisecond
	core := New(svc)
	defer core.Close()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			core.Handle(context.Background(), Request{Method: "gmail.inbox"})
		}()
	}
	wg.Wait()
	if svc.maxSeen < 2 {
		t.Fatalf("expected cold dispatch to overlap calls, max concurrency %d", svc.maxSeen)
	}
}

func TestHandleClassifiesErrorsAndRecords(t *testing.T) {
	svc := newStubService(t)
	rec := &memoryRecorder{}
	core := New(svc, WithRecorder(rec), WithMode(backend.ModeCold))
	defer core.Close()

	ok := core.Handle(context.Background(), Request{ID: "call-1", Method: "gmail.inbox"})
	if ok.Error != nil || ok.ID != "call-1" {
		t.Fatalf("unexpected response %+v", ok)
	}

	unknown := core.Handle(context.Background(), Request{Method: "gmail.nope"})
	if unknown.Error == nil || unknown.Error.Kind != backend.KindUnknownMethod || unknown.Result != nil {
		t.Fatalf("expected unknown_method, got %+v", unknown)
	}
	if unknown.ID == "" {
		t.Fatal("expected generated call id")
	}

	missing := core.Handle(context.Background(), Request{Method: "gmail.read"})
	if missing.Error == nil || missing.Error.Kind != backend.KindMissingRequiredParam || missing.Error.Message != "message_id" {
		t.Fatalf("expected missing_required_param, got %+v", missing)
	}

	failed := core.Handle(context.Background(), Request{Method: "gmail.read", Params: service.Params{"message_id": "boom"}})
	if failed.Error == nil || failed.Error.Kind != backend.KindNonzeroExit || failed.Error.Message != "boom" {
		t.Fatalf("expected backend error forwarded, got %+v", failed)
	}

	plain := core.Handle(context.Background(), Request{Method: "gmail.read", Params: service.Params{"message_id": "plain"}})
	if plain.Error == nil || plain.Error.Kind != backend.KindInternal || plain.Error.Message != "plain failure" {
		t.Fatalf("expected unclassified error wrapped, got %+v", plain)
	}

	if len(rec.records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(rec.records))
	}
	if rec.records[0].ID != "call-1" || rec.records[0].Mode != backend.ModeCold || rec.records[0].Err != nil {
		t.Fatalf("unexpected first record %+v", rec.records[0])
	}
	if rec.records[1].Err == nil || rec.records[1].Err.Kind != backend.KindUnknownMethod {
		t.Fatalf("unexpected second record %+v", rec.records[1])
	}
	if stats := core.Stats(); stats.Total != 5 || stats.Failed != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestClosedCoreRejectsRequests(t *testing.T) {
	for _, serial := range []bool{true, false} {
		core := New(newStubService(t), WithSerial(serial))
		core.Close()
		core.Close()
		resp := core.Handle(context.Background(), Request{Method: "gmail.inbox"})
		if resp.Error == nil || resp.Error.Kind != backend.KindUnavailable || !errors.Is(resp.Error, ErrClosed) {
			t.Fatalf("serial=%v: expected closed error, got %+v", serial, resp)
		}
	}
}
