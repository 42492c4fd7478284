package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	source := "parcels"

	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackCacheHit(source)
	tr.TrackCacheMiss(source)
	tr.TrackRequest(source)
	tr.TrackFailure(source)
	tr.TrackFeatures(source, 0)
	tr.TrackFeatures(source, 3)

	stats = tr.Snapshot()
	s, ok := stats[source]
	if !ok {
		t.Fatalf("Expected stats for source %s", source)
	}

	if s.CacheHits != 1 {
		t.Errorf("Expected 1 CacheHit, got %d", s.CacheHits)
	}
	if s.CacheMisses != 1 {
		t.Errorf("Expected 1 CacheMiss, got %d", s.CacheMisses)
	}
	if s.Requests != 1 {
		t.Errorf("Expected 1 Request, got %d", s.Requests)
	}
	if s.Failures != 1 {
		t.Errorf("Expected 1 Failure, got %d", s.Failures)
	}
	if s.EmptyResult != 1 {
		t.Errorf("Expected 1 EmptyResult, got %d", s.EmptyResult)
	}
	if s.Features != 3 {
		t.Errorf("Expected 3 Features, got %d", s.Features)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackRequest("wfs")
		}()
	}
	wg.Wait()

	if got := tr.Snapshot()["wfs"].Requests; got != 50 {
		t.Errorf("Expected 50 requests, got %d", got)
	}
}

func TestNilTracker(t *testing.T) {
	var tr *Tracker
	tr.TrackRequest("a")
	tr.TrackFeatures("a", 2)
}
