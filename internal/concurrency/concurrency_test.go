package concurrency_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qilang.dev/qi/internal/concurrency"
	"qilang.dev/qi/internal/value"
)

func identityApply(fn value.Value, args []value.Value) (value.Value, error) {
	nf := fn.(*value.NativeFunction)
	return nf.Fn(args)
}

func incrementer() value.Value {
	return &value.NativeFunction{Name: "inc", Fn: func(args []value.Value) (value.Value, error) {
		return value.Int(int64(args[0].(value.Int)) + 1), nil
	}}
}

func TestSwapAppliesFnToCurrentValue(t *testing.T) {
	a := value.NewAtom(value.Int(1))
	v, err := concurrency.Swap(identityApply, a, incrementer(), nil)
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), v)
	assert.Equal(t, value.Int(2), a.Load())
}

func TestSwapRetriesOnConcurrentChange(t *testing.T) {
	a := value.NewAtom(value.Int(0))
	racing := make(chan struct{})
	first := true
	slowInc := &value.NativeFunction{Name: "slow-inc", Fn: func(args []value.Value) (value.Value, error) {
		if first {
			first = false
			a.Store(value.Int(99)) // mutate out from under the in-flight swap
			close(racing)
		}
		return value.Int(int64(args[0].(value.Int)) + 1), nil
	}}
	v, err := concurrency.Swap(identityApply, a, slowInc, nil)
	require.NoError(t, err)
	<-racing
	assert.Equal(t, value.Int(100), v) // retried against the concurrently-stored 99
}

func TestSendRecvRoundTrip(t *testing.T) {
	ch := value.NewChannel(1)
	require.NoError(t, concurrency.Send(ch, value.Int(7)))
	v, ok, err := concurrency.Recv(ch, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, value.Int(7), v)
}

func TestTryRecvOnEmptyChannel(t *testing.T) {
	ch := value.NewChannel(1)
	_, ok := concurrency.TryRecv(ch)
	assert.False(t, ok)
}

func TestSendOnClosedChannelErrors(t *testing.T) {
	ch := value.NewChannel(1)
	concurrency.Close(ch)
	err := concurrency.Send(ch, value.Int(1))
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	ch := value.NewChannel(1)
	concurrency.Close(ch)
	assert.NotPanics(t, func() { concurrency.Close(ch) })
}

func TestFanOutGivesEachChannelItsOwnCopy(t *testing.T) {
	chans := concurrency.FanOut(value.Int(7), 3)
	require.Len(t, chans, 3)
	for _, ch := range chans {
		v, ok, err := concurrency.Recv(ch, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, value.Int(7), v)
	}
}

func TestFanInMultiplexesAndClosesWhenSourcesClose(t *testing.T) {
	a := value.NewChannel(1)
	b := value.NewChannel(1)
	require.NoError(t, concurrency.Send(a, value.Int(1)))
	require.NoError(t, concurrency.Send(b, value.Int(2)))
	concurrency.Close(a)
	concurrency.Close(b)

	out := concurrency.FanIn([]*value.Channel{a, b})
	seen := map[int64]bool{}
	for i := 0; i < 2; i++ {
		v, ok, err := concurrency.Recv(out, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		seen[int64(v.(value.Int))] = true
	}
	assert.True(t, seen[1])
	assert.True(t, seen[2])

	_, ok, err := concurrency.Recv(out, time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "fan-in output closes once every source has drained")
}

func TestSpawnAndAwait(t *testing.T) {
	reg, err := concurrency.NewRegistry(2)
	require.NoError(t, err)
	defer reg.Shutdown(time.Second)

	h := reg.Spawn(identityApply, incrementer(), []value.Value{value.Int(41)})
	v, err := concurrency.Await(h, 0)
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), v)
}

func TestPMapAppliesToEveryElement(t *testing.T) {
	reg, err := concurrency.NewRegistry(2)
	require.NoError(t, err)
	defer reg.Shutdown(time.Second)

	out, err := reg.PMap(identityApply, incrementer(), []value.Value{value.Int(1), value.Int(2), value.Int(3)})
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Int(2), value.Int(3), value.Int(4)}, out)
}
