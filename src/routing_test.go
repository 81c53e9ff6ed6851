package nwk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_RouterLearnsFromObservedReceive(t *testing.T) {
	r := NewRouter(4, nil)
	require.Equal(t, BroadcastAddr, r.NextHop(100))

	r.ObserveReceived(100, 200, 50)
	require.Equal(t, uint16(200), r.NextHop(100))
}

func Test_RouterImprovesAndWorsensScore(t *testing.T) {
	r := NewRouter(4, nil)
	r.ObserveReceived(100, 200, 50)
	rec := r.find(100)
	start := rec.Score

	r.FrameSent(1, 100, StatusSuccess)
	require.LessOrEqual(t, rec.Score, start)

	for i := 0; i < routeScoreWorst; i++ {
		r.FrameSent(1, 100, StatusNoAck)
	}
	require.Nil(t, r.find(100), "saturating the score must purge the route")
}

func Test_RouterSendsRouteErrorOnSaturation(t *testing.T) {
	var origin, unreachable uint16
	calls := 0
	r := NewRouter(4, func(o, u uint16) {
		calls++
		origin = o
		unreachable = u
	})
	r.ObserveReceived(100, 200, 50)

	for i := 0; i < routeScoreWorst+1; i++ {
		r.FrameSent(42, 100, StatusNoAck)
	}

	require.Equal(t, 1, calls)
	require.Equal(t, uint16(42), origin)
	require.Equal(t, uint16(100), unreachable)
}

func Test_RouterTableFullStopsLearning(t *testing.T) {
	r := NewRouter(1, nil)
	r.ObserveReceived(1, 11, 1)
	r.ObserveReceived(2, 22, 1)

	require.Equal(t, uint16(11), r.NextHop(1))
	require.Equal(t, BroadcastAddr, r.NextHop(2), "table full, second source never learned")
}

func Test_RouterRemove(t *testing.T) {
	r := NewRouter(4, nil)
	r.ObserveReceived(100, 200, 50)
	r.Remove(100)
	require.Equal(t, BroadcastAddr, r.NextHop(100))
}
