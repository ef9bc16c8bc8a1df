package utils

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" || id1 == id2 {
		t.Fatalf("GenerateID should return unique non-empty IDs: %q %q", id1, id2)
	}
	if !strings.Contains(id1, "-") {
		t.Errorf("GenerateID should contain hyphen: %s", id1)
	}
}

func TestGenerateSessionID(t *testing.T) {
	id := GenerateSessionID()
	if !strings.HasPrefix(id, "sess-") {
		t.Fatalf("session ID %q should start with sess-", id)
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := GenerateSessionID()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate session ID %s", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
}
