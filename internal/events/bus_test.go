package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StreamStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e StreamStateChangedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(StreamStateChangedEvent{State: "running", PID: 42})

	got := <-received
	if got.State != "running" || got.PID != 42 {
		t.Errorf("received %+v, want running/42", got)
	}
}

func TestBusMultipleSubscribers(_ *testing.T) {
	bus := New()
	first := make(chan CameraDiscoveredEvent, 1)
	second := make(chan CameraDiscoveredEvent, 1)

	unsub1 := bus.Subscribe(func(e CameraDiscoveredEvent) { first <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e CameraDiscoveredEvent) { second <- e })
	defer unsub2()

	bus.Publish(CameraDiscoveredEvent{Device: "/dev/video0"})

	<-first
	<-second
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ConfigReloadedEvent, 1)

	unsub := bus.Subscribe(func(e ConfigReloadedEvent) { received <- e })

	bus.Publish(ConfigReloadedEvent{Deployment: "manifest"})
	<-received

	unsub()

	bus.Publish(ConfigReloadedEvent{Deployment: "rtsp-server"})
	select {
	case <-received:
		t.Fatal("received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBusTypeSafety(t *testing.T) {
	bus := New()

	stateReceived := make(chan bool, 1)
	cameraReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ StreamStateChangedEvent) { stateReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ CameraDiscoveredEvent) { cameraReceived <- true })
	defer unsub2()

	bus.Publish(StreamStateChangedEvent{State: "running"})
	<-stateReceived

	select {
	case <-cameraReceived:
		t.Fatal("camera subscriber received a stream state event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBusThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	goroutines, perGoroutine := 10, 100
	expected := goroutines * perGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ CameraDiscoveredEvent) { receivedCh <- true })
	defer unsub()

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				bus.Publish(CameraDiscoveredEvent{Device: "/dev/video0"})
			}
		}()
	}
	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[StreamStateChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(StreamStateChangedEvent{State: "error", Error: "device busy"})

	received := <-ch
	ev, ok := received.(StreamStateChangedEvent)
	if !ok {
		t.Fatalf("received %T, want StreamStateChangedEvent", received)
	}
	if ev.Error != "device busy" {
		t.Errorf("Error = %q, want device busy", ev.Error)
	}
}

func TestSubscribeToChannelNonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // unbuffered, nobody reading

	unsub := SubscribeToChannel[ConfigReloadedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(ConfigReloadedEvent{})
		done <- true
	}()
	<-done
}
