package events_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/events"
)

func TestQueueFIFO(t *testing.T) {
	q := events.NewQueue()

	require.True(t, q.Enqueue(events.NewDocument{Path: "a.pdf"}))
	require.True(t, q.Enqueue(events.Tick{}))
	require.True(t, q.Enqueue(events.OperatorAction{Action: events.Cancel}))
	assert.Equal(t, 3, q.Len())

	var kinds []string
	for {
		e, ok := q.TryDequeue()
		if !ok {
			break
		}
		kinds = append(kinds, e.Kind())
	}

	assert.Equal(t, []string{"new_document", "tick", "operator_action"}, kinds)
	assert.Equal(t, 0, q.Len())
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := events.NewQueue()

	const producers, each = 8, 50
	var wg sync.WaitGroup
	for range producers {
		wg.Go(func() {
			for range each {
				q.Enqueue(events.Tick{At: time.Now()})
			}
		})
	}
	wg.Wait()

	assert.Equal(t, producers*each, q.Len())
}

func TestQueueWaitSignals(t *testing.T) {
	q := events.NewQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(events.NewDocument{Path: "x.pdf"})
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal")
	}

	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, events.NewDocument{Path: "x.pdf"}, e)
}

func TestQueueClose(t *testing.T) {
	q := events.NewQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(events.Tick{}))

	_, open := <-q.Wait()
	assert.False(t, open)
}

func TestParseAction(t *testing.T) {
	a, err := events.ParseAction("approve")
	require.NoError(t, err)
	assert.Equal(t, events.Approve, a)

	_, err = events.ParseAction("maybe")
	assert.Error(t, err)
}
