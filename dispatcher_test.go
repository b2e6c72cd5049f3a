package threedsecure

import (
	"sync"
	"testing"
)

func TestMainLoopRunsTasksInOrder(t *testing.T) {
	t.Parallel()

	loop := NewMainLoop()
	defer loop.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 50 {
		loop.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	loop.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("expected 50 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran out of order: %v", i, got)
		}
	}
}

func TestMainLoopTasksMayPostFollowUps(t *testing.T) {
	t.Parallel()

	loop := NewMainLoop()
	defer loop.Close()

	done := make(chan string, 2)
	loop.Post(func() {
		loop.Post(func() { done <- "second" })
		done <- "first"
	})
	loop.Flush()
	loop.Flush()

	if first, second := <-done, <-done; first != "first" || second != "second" {
		t.Fatalf("unexpected order %s, %s", first, second)
	}
}

func TestMainLoopCloseDrainsAndDropsLatePosts(t *testing.T) {
	t.Parallel()

	loop := NewMainLoop()
	ran := make(chan struct{}, 2)
	release := make(chan struct{})
	loop.Post(func() { <-release })
	loop.Post(func() { ran <- struct{}{} })

	closed := make(chan struct{})
	go func() {
		loop.Close()
		close(closed)
	}()
	close(release)
	<-closed

	if len(ran) != 1 {
		t.Fatalf("expected queued task to run before close returned")
	}
	loop.Post(func() { ran <- struct{}{} })
	loop.Flush()
	if len(ran) != 1 {
		t.Fatalf("task posted after close must not run")
	}
}
