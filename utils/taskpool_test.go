package utils

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestTaskPoolRunsAllTasks(t *testing.T) {
	pool := NewTaskPool(4)
	defer pool.Close()

	var ran int64
	handles := make([]*TaskHandle, 0, 20)
	for i := 0; i < 20; i++ {
		handles = append(handles, pool.Submit(func() error {
			atomic.AddInt64(&ran, 1)
			return nil
		}))
	}
	for _, h := range handles {
		test.That(t, h.Wait(), test.ShouldBeNil)
	}
	test.That(t, atomic.LoadInt64(&ran), test.ShouldEqual, int64(20))
}

func TestTaskPoolPropagatesTaskError(t *testing.T) {
	pool := NewTaskPool(2)
	defer pool.Close()

	boom := errors.New("boom")
	good := pool.Submit(func() error { return nil })
	bad := pool.Submit(func() error { return boom })

	test.That(t, good.Wait(), test.ShouldBeNil)
	test.That(t, bad.Wait(), test.ShouldBeError, boom)
}

func TestTaskPoolDefaultParallelism(t *testing.T) {
	pool := NewTaskPool(0)
	h := pool.Submit(func() error { return nil })
	test.That(t, h.Wait(), test.ShouldBeNil)
	pool.Close()
}

func TestTaskPoolStopDiscardsQueued(t *testing.T) {
	pool := NewTaskPool(1)

	started := make(chan struct{})
	release := make(chan struct{})
	first := pool.Submit(func() error {
		close(started)
		<-release
		return nil
	})
	var queued []*TaskHandle
	var ran int64
	for i := 0; i < 4; i++ {
		queued = append(queued, pool.Submit(func() error {
			atomic.AddInt64(&ran, 1)
			return nil
		}))
	}

	<-started
	stopDone := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopDone)
	}()

	// Queued tasks are discarded while the first task is still running.
	for _, h := range queued {
		test.That(t, h.Wait(), test.ShouldBeError, ErrPoolStopped)
	}

	close(release)
	<-stopDone
	test.That(t, first.Wait(), test.ShouldBeNil)
	test.That(t, atomic.LoadInt64(&ran), test.ShouldEqual, int64(0))
}

func TestTaskPoolSubmitAfterStop(t *testing.T) {
	pool := NewTaskPool(2)
	pool.Stop()
	h := pool.Submit(func() error { return nil })
	test.That(t, h.Wait(), test.ShouldBeError, ErrPoolStopped)
}

func TestTaskPoolCloseWaitsForQueued(t *testing.T) {
	pool := NewTaskPool(1)
	var ran int64
	handles := make([]*TaskHandle, 0, 5)
	for i := 0; i < 5; i++ {
		handles = append(handles, pool.Submit(func() error {
			atomic.AddInt64(&ran, 1)
			return nil
		}))
	}
	pool.Close()
	test.That(t, atomic.LoadInt64(&ran), test.ShouldEqual, int64(5))
	for _, h := range handles {
		test.That(t, h.Wait(), test.ShouldBeNil)
	}
}
