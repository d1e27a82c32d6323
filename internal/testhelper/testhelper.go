package testhelper

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jjeffery/ddbsessions/storage"
)

// TestStorageProvider runs a set of common tests on a storage.Provider implementation.
func TestStorageProvider(t *testing.T, db storage.Provider) {
	missingTest(t, db)
	replaceTest(t, db)
	expiredTest(t, db)
	raceTest(t, db)
}

func missingTest(t *testing.T, db storage.Provider) {
	ctx := context.Background()
	item, err := db.Fetch(ctx, "missing-item-key")
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	if item != nil {
		t.Fatalf("got=%v, want=nil", item)
	}
}

func replaceTest(t *testing.T, db storage.Provider) {
	ctx := context.Background()
	const key = "replace-test-key"

	for i := 0; i < 3; i++ {
		data := fmt.Sprintf(`{"n":%d}`, i)
		saveItem := storage.Item{
			Key:       key,
			Data:      data,
			ExpiresAt: time.Now().Add(12 * time.Hour).Truncate(time.Second),
		}
		if err := db.Save(ctx, &saveItem); err != nil {
			t.Fatalf("got=%v, want=nil", err)
		}
		item, err := db.Fetch(ctx, key)
		if err != nil {
			t.Fatalf("got=%v, want=nil", err)
		}
		if item == nil {
			t.Fatal("got=nil, want=non-nil")
		}
		if got, want := item.Key, key; got != want {
			t.Fatalf("got=%v, want=%v", got, want)
		}
		if got, want := item.Data, data; got != want {
			t.Fatalf("got=%v, want=%v", got, want)
		}
	}

	// no expiry is allowed
	if err := db.Save(ctx, &storage.Item{Key: key, Data: "{}"}); err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	item, err := db.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	if item == nil || item.Data != "{}" {
		t.Fatalf("got=%v, want=data {}", item)
	}
}

func expiredTest(t *testing.T, db storage.Provider) {
	ctx := context.Background()
	const key = "expired-test-key"

	item := storage.Item{
		Key:       key,
		Data:      `{"a":1}`,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := db.Save(ctx, &item); err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	got, err := db.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	if got != nil {
		t.Fatalf("got=%v, want=nil", got)
	}
}

// raceTest has concurrent writers saving the same keys. There is no
// version check, so every save must succeed and the item that remains
// is whichever was written last.
func raceTest(t *testing.T, db storage.Provider) {
	const loopCount = 20
	var wg sync.WaitGroup
	for i := 0; i < loopCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raceTest1(t, db, i)
		}(i)
	}
	wg.Wait()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		item, err := db.Fetch(ctx, fmt.Sprintf("race-%d", i))
		if err != nil {
			t.Fatalf("got=%v, want=nil", err)
		}
		if item == nil {
			t.Fatalf("%d: got=nil, want=non-nil", i)
		}
	}
}

func raceTest1(t *testing.T, db storage.Provider, instance int) {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		item := storage.Item{
			Key:       fmt.Sprintf("race-%d", i),
			Data:      fmt.Sprintf(`{"writer":%d}`, instance),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := db.Save(ctx, &item); err != nil {
			t.Errorf("%d: %d: %v", instance, i, err)
		}
	}
}
