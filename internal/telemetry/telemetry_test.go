package telemetry

import (
	"sync"
	"testing"
)

func TestUsageSink_ConcurrentWritersLoseNothing(t *testing.T) {
	sink := NewUsageSink()

	const writers = 16
	const perWriter = 100

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				sink.AddTokens(2, 3)
				sink.RecordAction("fs_read", j%10 == 0)
			}
		}()
	}
	wg.Wait()

	snap := sink.Snapshot()
	if snap.PromptTokens != writers*perWriter*2 {
		t.Fatalf("lost prompt tokens: got %d", snap.PromptTokens)
	}
	if snap.CompletionTokens != writers*perWriter*3 {
		t.Fatalf("lost completion tokens: got %d", snap.CompletionTokens)
	}
	if snap.ActionCalls != writers*perWriter {
		t.Fatalf("lost action calls: got %d", snap.ActionCalls)
	}
	if snap.PerAction["fs_read"] != writers*perWriter {
		t.Fatalf("lost per-action counts: got %d", snap.PerAction["fs_read"])
	}
	if snap.TotalTokens() != snap.PromptTokens+snap.CompletionTokens {
		t.Fatal("total tokens mismatch")
	}
}

func TestUsageSink_SnapshotIsACopy(t *testing.T) {
	sink := NewUsageSink()
	sink.RecordAction("shell_exec", false)

	snap := sink.Snapshot()
	snap.PerAction["shell_exec"] = 999

	if sink.Snapshot().PerAction["shell_exec"] != 1 {
		t.Fatal("mutating a snapshot must not affect the sink")
	}
}

func TestMessageLog_ConcurrentAppends(t *testing.T) {
	log := NewMessageLog()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				log.Append("branch", id, "assistant", "msg")
			}
		}(i)
	}
	wg.Wait()

	if log.Len() != writers*perWriter {
		t.Fatalf("lost entries: got %d", log.Len())
	}
}

func TestMessageLog_NilSafe(t *testing.T) {
	var log *MessageLog
	log.Append("b", 0, "user", "hello")
	if log.Len() != 0 || log.Entries() != nil {
		t.Fatal("nil log must be inert")
	}
}
