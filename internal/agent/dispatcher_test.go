package agent

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

func TestDispatcherOrdersPerRoom(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	seen := make(map[string][]int)
	d := NewDispatcher(context.Background(), func(_ context.Context, ev models.Event) {
		n, _ := strconv.Atoi(ev.ID)
		mu.Lock()
		seen[ev.RoomID] = append(seen[ev.RoomID], n)
		mu.Unlock()
	}, 100, zerolog.Nop())

	rooms := []string{"a", "b", "c"}
	for i := range 30 {
		require.True(t, d.Submit(models.Event{ID: fmt.Sprint(i), RoomID: rooms[i%3]}))
	}
	d.Wait()

	for _, r := range rooms {
		got := seen[r]
		require.Len(t, got, 10, r)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1], got[i], r)
		}
	}
	assert.False(t, d.Submit(models.Event{ID: "late", RoomID: "a"}))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d := NewDispatcher(context.Background(), func(_ context.Context, ev models.Event) {
		if ev.ID == "1" {
			started <- struct{}{}
			<-release
		}
	}, 1, zerolog.Nop())

	require.True(t, d.Submit(models.Event{ID: "1", RoomID: "a"}))
	<-started
	assert.True(t, d.Submit(models.Event{ID: "2", RoomID: "a"}))
	assert.False(t, d.Submit(models.Event{ID: "3", RoomID: "a"}))
	assert.True(t, d.Submit(models.Event{ID: "4", RoomID: "b"}), "other rooms have their own queue")

	close(release)
	d.Wait()
}

func TestDispatcherRejectsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(ctx, func(context.Context, models.Event) {}, 1, zerolog.Nop())
	cancel()
	assert.False(t, d.Submit(models.Event{ID: "1", RoomID: "a"}))
	d.Wait()
}
