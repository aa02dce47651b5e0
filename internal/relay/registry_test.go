package relay

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func fanoutSnapshot(r *Registry, key string) []TrackPair {
	var pairs []TrackPair
	r.WithFanout(key, func(p []TrackPair) { pairs = p })
	return pairs
}

func TestRegistryPutGetDelete(t *testing.T) {
	r := NewRegistry()
	session := &Session{ID: uuid.New(), Role: RoleIngest, StreamKey: "k1"}

	r.Put(session)

	got, ok := r.Get(session.ID)
	assert.True(t, ok, "expected session to be found")
	assert.Equal(t, "k1", got.StreamKey)

	r.Delete(session.ID)
	_, ok = r.Get(session.ID)
	assert.False(t, ok, "expected session to be gone after Delete")
}

func TestRegistrySubscribeUnsubscribe(t *testing.T) {
	r := NewRegistry()
	pairA := TrackPair{Video: &webrtc.TrackLocalStaticRTP{}}
	pairB := TrackPair{Video: &webrtc.TrackLocalStaticRTP{}}

	r.Subscribe("key", pairA)
	r.Subscribe("key", pairB)

	assert.Len(t, fanoutSnapshot(r, "key"), 2)

	r.Unsubscribe("key", pairA)
	got := fanoutSnapshot(r, "key")
	if assert.Len(t, got, 1) {
		assert.Equal(t, pairB.Video, got[0].Video)
	}
}

func TestRegistryClearKeyRemovesAllSubscribers(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("key", TrackPair{Video: &webrtc.TrackLocalStaticRTP{}})
	r.Subscribe("key", TrackPair{Video: &webrtc.TrackLocalStaticRTP{}})

	r.ClearKey("key")

	assert.Empty(t, fanoutSnapshot(r, "key"))
}

func TestRegistryWithFanoutSeesLiveSubscribers(t *testing.T) {
	r := NewRegistry()
	pair := TrackPair{Video: &webrtc.TrackLocalStaticRTP{}}
	r.Subscribe("key", pair)

	var seen []TrackPair
	r.WithFanout("key", func(pairs []TrackPair) {
		seen = pairs
	})

	if assert.Len(t, seen, 1) {
		assert.Equal(t, pair.Video, seen[0].Video)
	}
}

func TestRegistryWithFanoutInsertsEmptyKeyWhenAbsent(t *testing.T) {
	r := NewRegistry()

	r.WithFanout("unknown-key", func(pairs []TrackPair) {
		assert.Nil(t, pairs, "expected no subscribers for a new key")
	})

	assert.Empty(t, fanoutSnapshot(r, "unknown-key"))

	_, ok := r.subscriptions["unknown-key"]
	assert.True(t, ok, "expected the key to be established in subscriptions")
}
