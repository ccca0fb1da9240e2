package tracker

import (
	"sync"
	"testing"
)

func TestTryClaim(t *testing.T) {
	t.Run("SecondClaimFails", func(t *testing.T) {
		tr := New()
		key := PlaylistFetch("pl1")

		if !tr.TryClaim(key) {
			t.Fatal("first claim should succeed")
		}
		if tr.TryClaim(key) {
			t.Fatal("second claim should fail while held")
		}

		tr.Release(key)
		if !tr.TryClaim(key) {
			t.Fatal("claim after release should succeed")
		}
	})

	t.Run("DistinctKeysIndependent", func(t *testing.T) {
		tr := New()

		if !tr.TryClaim(PlaylistFetch("pl1")) {
			t.Fatal("claim failed")
		}
		if !tr.TryClaim(PlaylistDownload("pl1")) {
			t.Error("different kind on same playlist should not collide")
		}
		if !tr.TryClaim(PlaylistFetch("pl2")) {
			t.Error("same kind on different playlist should not collide")
		}
		if !tr.TryClaim(VideoDownload("pl1", "vid1")) {
			t.Error("video-scoped key should not collide with playlist-scoped key")
		}
		if !tr.TryClaim(VideoDownload("pl2", "vid1")) {
			t.Error("same video in another playlist should not collide")
		}
	})

	t.Run("ReleaseUnheldIsNoop", func(t *testing.T) {
		tr := New()
		tr.Release(PlaylistFetch("pl1"))

		if tr.IsClaimed(PlaylistFetch("pl1")) {
			t.Error("unheld key reported claimed")
		}
	})
}

func TestClaimedVideos(t *testing.T) {
	tr := New()
	tr.TryClaim(VideoDownload("pl1", "vid1"))
	tr.TryClaim(VideoDownload("pl1", "vid2"))
	tr.TryClaim(VideoDownload("pl2", "vid3"))
	tr.TryClaim(PlaylistDownload("pl1"))

	claimed := tr.ClaimedVideos(KindVideoDownload, "pl1")
	if len(claimed) != 2 {
		t.Fatalf("expected 2 claimed videos, got %d: %v", len(claimed), claimed)
	}
	seen := map[string]bool{}
	for _, id := range claimed {
		seen[id] = true
	}
	if !seen["vid1"] || !seen["vid2"] {
		t.Errorf("unexpected claimed set: %v", claimed)
	}
}

func TestConcurrentClaims(t *testing.T) {
	tr := New()
	key := VideoDownload("pl1", "vid1")

	const goroutines = 32
	wins := make(chan bool, goroutines)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- tr.TryClaim(key)
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}
}
