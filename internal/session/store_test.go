package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRecordAndHistory(t *testing.T) {
	s := NewStore(5, time.Minute)
	s.Record("s1", "first")
	s.Record("s1", "second")
	s.Record("s2", "other session")

	if diff := cmp.Diff([]string{"first", "second"}, s.History("s1")); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if got := s.History("unknown"); got != nil {
		t.Errorf("unknown session history = %v, want nil", got)
	}
}

func TestHistoryEviction(t *testing.T) {
	s := NewStore(3, time.Minute)
	for i := 0; i < 5; i++ {
		s.Record("s1", fmt.Sprintf("q%d", i))
	}
	if diff := cmp.Diff([]string{"q2", "q3", "q4"}, s.History("s1")); diff != "" {
		t.Errorf("eviction mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewStore(5, time.Minute)
	s.Record("s1", "original")
	h := s.History("s1")
	h[0] = "mutated"
	if got := s.History("s1")[0]; got != "original" {
		t.Errorf("store history mutated through returned slice: %q", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(5, time.Minute)
	s.now = func() time.Time { return now }

	s.Record("s1", "hello")
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}

	now = now.Add(2 * time.Minute)
	if got := s.History("s1"); got != nil {
		t.Errorf("expired session history = %v, want nil", got)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0 after expiry", s.Len())
	}
}

func TestRecordRefreshesTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(5, time.Minute)
	s.now = func() time.Time { return now }

	s.Record("s1", "one")
	now = now.Add(45 * time.Second)
	s.Record("s1", "two")
	now = now.Add(45 * time.Second)

	if got := len(s.History("s1")); got != 2 {
		t.Errorf("history len = %d, want 2 (record should refresh the TTL)", got)
	}
}

func TestEmptySessionIDIgnored(t *testing.T) {
	s := NewStore(5, time.Minute)
	s.Record("", "query")
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(10, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n%2)
			for j := 0; j < 50; j++ {
				s.Record(id, "query")
				s.History(id)
			}
		}(i)
	}
	wg.Wait()
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}
}
