package monitor

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSinkDispatchesToHandler(t *testing.T) {
	sink := NewSink("test://sink", "filter")
	assert.False(t, sink.Running())

	received := make(chan []byte, 1)
	sink.SetHandler(&SinkHandler{Callback: callbackFunc(func(data []byte) error {
		received <- data
		return nil
	})})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go sink.Run(ctx, &wg)

	time.Sleep(10 * time.Millisecond)
	assert.True(t, sink.Running())

	sink.Publish([]byte("hello"))

	select {
	case data := <-received:
		assert.Equal(t, "hello", string(data))
	case <-time.After(time.Second):
		t.Fatal("handler never received published data")
	}

	cancel()
	wg.Wait()
	assert.False(t, sink.Running())
}

func TestSinkPublishDropsOldestWhenFull(t *testing.T) {
	sink := NewSink("test://sink", "")
	for i := 0; i < 20; i++ {
		sink.Publish([]byte(strconv.Itoa(i)))
	}
	// Publish never blocks; with a capacity of 16 the four oldest
	// snapshots (0-3) are dropped, leaving 4 at the head of the queue.
	assert.Len(t, sink.queue, 16)
	assert.Equal(t, "4", string(<-sink.queue))
}

func TestBroadcasterFansOutToEverySubscriber(t *testing.T) {
	bc := newBroadcaster()
	ch1, unsub1 := bc.Subscribe()
	defer unsub1()
	ch2, unsub2 := bc.Subscribe()
	defer unsub2()

	assert.NoError(t, bc.Handle([]byte("payload")))

	for _, ch := range []chan []byte{ch1, ch2} {
		select {
		case data := <-ch:
			assert.Equal(t, "payload", string(data))
		case <-time.After(time.Second):
			t.Fatal("subscriber never received broadcast")
		}
	}
}
