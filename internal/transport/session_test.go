package transport

import (
	"testing"
	"time"
)

func TestSession_EnqueueDropsOnFullBuffer(t *testing.T) {
	conn := newFakeConn()
	sess := &Session{ID: "s1", conn: conn, send: make(chan []byte, 1)}

	sess.send <- []byte("first")
	sess.enqueue("EVENT", []byte("second"))

	select {
	case <-sess.send:
	default:
		t.Fatal("expected send channel to still hold the first message")
	}

	// The overflow above already closed send; a second close through
	// forceClose must not panic, because the closed flag guarded by
	// closeMu turns it into a no-op.
	sess.forceClose()
}

func TestSession_SendFrameEnqueuesMarshaledJSON(t *testing.T) {
	conn := newFakeConn()
	sess := &Session{ID: "s1", conn: conn, send: make(chan []byte, 4)}

	sess.sendFrame(connectedFrame("s1"))

	select {
	case data := <-sess.send:
		if len(data) == 0 {
			t.Fatal("expected non-empty marshaled frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for enqueued frame")
	}
}
