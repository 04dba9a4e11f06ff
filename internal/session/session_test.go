package session

import (
	"sync"
	"testing"
	"time"
)

func TestAddUpsertsByUserID(t *testing.T) {
	d := NewDirectory()
	d.Add(Record{UserID: 1, Name: "first", LastLoginTime: time.Now()})
	d.Add(Record{UserID: 1, Name: "second"})

	rec, ok := d.Get(1)
	if !ok || rec.Name != "second" {
		t.Fatalf("expected last write to win, got %+v ok=%v", rec, ok)
	}
	if len(d.List()) != 1 {
		t.Fatalf("expected a single session, got %d", len(d.List()))
	}
}

func TestClearReturnsRemaining(t *testing.T) {
	d := NewDirectory()
	d.Add(Record{UserID: 1})
	d.Add(Record{UserID: 2})

	if remaining := d.Clear(1); remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", remaining)
	}
	if _, ok := d.Get(1); ok {
		t.Fatal("cleared session should be gone")
	}
	if remaining := d.Clear(99); remaining != 1 {
		t.Fatalf("clearing a missing id should leave the rest, got %d", remaining)
	}
}

func TestConcurrentAccess(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			d.Add(Record{UserID: id % 4, IsLoggedIn: true})
			d.Get(id % 4)
			d.List()
		}(int64(i))
	}
	wg.Wait()
	if len(d.List()) != 4 {
		t.Fatalf("expected 4 sessions, got %d", len(d.List()))
	}
}
