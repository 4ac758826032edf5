package ros

import (
	"sync"
	"testing"

	"go.viam.com/test"

	"go.viam.com/xdwa/logging"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(logging.NewTestLogger(t))
	var got []string
	bus.Subscribe("/a", func(msg interface{}) { got = append(got, "first:"+msg.(string)) })
	bus.Subscribe("/a", func(msg interface{}) { got = append(got, "second:"+msg.(string)) })
	bus.Subscribe("/b", func(msg interface{}) { got = append(got, "b:"+msg.(string)) })

	bus.Publish("/a", "1")
	bus.Publish("/a", "2")
	bus.Publish("/c", "nobody")

	test.That(t, got, test.ShouldResemble, []string{"first:1", "second:1", "first:2", "second:2"})
	test.That(t, bus.Topics(), test.ShouldResemble, []string{"/a", "/b"})
	test.That(t, bus.Stats(), test.ShouldResemble, BusStats{Published: 3, Delivered: 4, Dropped: 1})
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(logging.NewTestLogger(t))
	count := 0
	unsubscribe := bus.Subscribe("/a", func(msg interface{}) { count++ })
	other := 0
	bus.Subscribe("/a", func(msg interface{}) { other++ })

	bus.Publish("/a", nil)
	unsubscribe()
	unsubscribe()
	bus.Publish("/a", nil)

	test.That(t, count, test.ShouldEqual, 1)
	test.That(t, other, test.ShouldEqual, 2)

	unsubscribeLast := bus.Subscribe("/b", func(msg interface{}) {})
	test.That(t, bus.Topics(), test.ShouldContain, "/b")
	unsubscribeLast()
	test.That(t, bus.Topics(), test.ShouldNotContain, "/b")
}

func TestBusUnsubscribeWhilePublishing(t *testing.T) {
	bus := NewBus(logging.NewTestLogger(t))
	calls := 0
	var unsubscribe func()
	unsubscribe = bus.Subscribe("/a", func(msg interface{}) {
		calls++
		unsubscribe()
	})
	bus.Publish("/a", nil)
	bus.Publish("/a", nil)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestTypedSubscribe(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	bus := NewBus(logger)
	var got []Twist
	Subscribe(bus, "/cmd_vel", func(tw Twist) { got = append(got, tw) })

	bus.Publish("/cmd_vel", Twist{Linear: Vector3{X: 1}})
	bus.Publish("/cmd_vel", "not a twist")

	test.That(t, got, test.ShouldResemble, []Twist{{Linear: Vector3{X: 1}}})
	test.That(t, logs.FilterMessage("unexpected message type").Len(), test.ShouldEqual, 1)
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus(logging.NewTestLogger(t))
	var mu sync.Mutex
	total := 0
	bus.Subscribe("/a", func(msg interface{}) {
		mu.Lock()
		total += msg.(int)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish("/a", 1)
			}
		}()
	}
	wg.Wait()
	test.That(t, total, test.ShouldEqual, 1000)
	test.That(t, bus.Stats().Delivered, test.ShouldEqual, uint64(1000))
}
