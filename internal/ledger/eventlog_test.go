package ledger

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/domain"
)

func appendN(l *EventLog, n int) {
	for i := 0; i < n; i++ {
		l.append(&domain.Event{
			Seq:   l.LastSeq() + 1,
			Kind:  domain.EventKindTransfer,
			From:  deployer,
			To:    receiver,
			Value: uint256.NewInt(uint64(i)),
		})
	}
}

func TestEventLog_Since(t *testing.T) {
	l := newEventLog()
	appendN(l, 5)

	assert.Equal(t, 5, l.Len())
	assert.Len(t, l.All(), 5)

	tail := l.Since(2, 0)
	require.Len(t, tail, 3)
	assert.Equal(t, uint64(3), tail[0].Seq)
	assert.Equal(t, uint64(5), tail[2].Seq)

	limited := l.Since(0, 2)
	require.Len(t, limited, 2)
	assert.Equal(t, uint64(2), limited[1].Seq)

	assert.Empty(t, l.Since(5, 0))
	assert.Empty(t, l.Since(99, 0))
}

func TestEventLog_ReturnsCopies(t *testing.T) {
	l := newEventLog()
	appendN(l, 1)

	got := l.All()[0]
	got.Value.SetUint64(99)
	got.To = exchange

	again := l.All()[0]
	assert.True(t, again.Value.IsZero())
	assert.Equal(t, receiver, again.To)
}

func TestEventLog_ChangedWakesWaiter(t *testing.T) {
	l := newEventLog()
	changed := l.Changed()

	select {
	case <-changed:
		t.Fatal("changed closed before any append")
	default:
	}

	done := make(chan []*domain.Event)
	go func() {
		<-changed
		done <- l.Since(0, 0)
	}()

	appendN(l, 1)

	select {
	case events := <-done:
		assert.Len(t, events, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken")
	}

	assert.NotEqual(t, changed, l.Changed(), "a fresh channel follows each append")
}
