package sources

import (
	"testing"

	"github.com/Chedly25/newTrip/internal/domain"
)

func TestKindMap(t *testing.T) {
	kinds := KindMap("Annecy, lyon", "france,paris")
	if kinds["annecy"] != domain.ChannelLocal {
		t.Fatalf("annecy should be local, got %q", kinds["annecy"])
	}
	if kinds["paris"] != domain.ChannelMainstream {
		t.Fatalf("paris should be mainstream, got %q", kinds["paris"])
	}
	if _, ok := kinds["nice"]; ok {
		t.Fatalf("unlisted subreddit should be absent")
	}
}

func TestChannelKindFallsBackToUnknown(t *testing.T) {
	r := NewReddit("", KindMap("annecy", ""))
	if got := r.channelKind("Annecy"); got != domain.ChannelLocal {
		t.Fatalf("expected local, got %q", got)
	}
	if got := r.channelKind("nice"); got != domain.ChannelUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
}
