package room

import "sync"

const viewerQueue = 32

// viewer owns the outbound queue of one Conn. The room only enqueues; the
// pump goroutine does the blocking Send.
type viewer struct {
	conn Conn
	out  chan []byte
	quit chan struct{}
	once sync.Once
}

func newViewer(c Conn) *viewer {
	v := &viewer{
		conn: c,
		out:  make(chan []byte, viewerQueue),
		quit: make(chan struct{}),
	}
	go v.pump()
	return v
}

// push reports false when the viewer is gone or too far behind.
func (v *viewer) push(b []byte) bool {
	select {
	case <-v.quit:
		return false
	default:
	}
	select {
	case v.out <- b:
		return true
	default:
		return false
	}
}

func (v *viewer) pump() {
	for {
		select {
		case <-v.quit:
			return
		case b := <-v.out:
			if err := v.conn.Send(b); err != nil {
				v.stop()
				return
			}
		}
	}
}

func (v *viewer) stop() {
	v.once.Do(func() {
		close(v.quit)
		_ = v.conn.Close()
	})
}
