// Package comm provides the process group used by the collective mesh
// operations. Ranks of a LocalWorld are goroutines of one process that
// exchange messages over channels.
package comm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Role is the part a process plays in a collective operation
type Role uint8

const (
	// Root holds the input and broadcasts it
	Root Role = iota
	// Receiver waits for its share from the root
	Receiver
)

func (r Role) String() string {
	switch r {
	case Root:
		return "root"
	case Receiver:
		return "receiver"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Comm is a group of processes identified by rank 0..Size-1
type Comm interface {
	Rank() int
	Size() int
	// Send delivers msg to rank to. It blocks until the message is queued
	// or ctx is done.
	Send(ctx context.Context, to int, msg any) error
	// Recv returns the next message sent by rank from
	Recv(ctx context.Context, from int) (any, error)
	// Barrier returns once every rank of the group has entered it
	Barrier(ctx context.Context) error
}

// IsBroadcaster reports whether c is rank 0 of a group of more than one
// process
func IsBroadcaster(c Comm) bool { return c.Size() > 1 && c.Rank() == 0 }

// IsReceiver reports whether c is a non-root rank of a group
func IsReceiver(c Comm) bool { return c.Size() > 1 && c.Rank() != 0 }

// RoleOf returns Receiver for non-root ranks and Root otherwise, including
// for a single-process group
func RoleOf(c Comm) Role {
	if IsReceiver(c) {
		return Receiver
	}
	return Root
}

// LocalWorld is an in-process group of size ranks
type LocalWorld struct {
	size int
	// [from][to] message queues
	links [][]chan any

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

// NewLocalWorld creates a group of n ranks
func NewLocalWorld(n int) *LocalWorld {
	if n < 1 {
		panic(fmt.Sprintf("world size must be positive, got %d", n))
	}
	w := &LocalWorld{
		size:    n,
		links:   make([][]chan any, n),
		release: make(chan struct{}),
	}
	for from := range w.links {
		w.links[from] = make([]chan any, n)
		for to := range w.links[from] {
			w.links[from][to] = make(chan any, 16)
		}
	}
	return w
}

// Size returns the number of ranks
func (w *LocalWorld) Size() int { return w.size }

// Rank returns the Comm endpoint of rank r
func (w *LocalWorld) Rank(r int) Comm {
	if r < 0 || r >= w.size {
		panic(fmt.Sprintf("rank %d out of range [0, %d)", r, w.size))
	}
	return &localComm{world: w, rank: r}
}

type localComm struct {
	world *LocalWorld
	rank  int
}

func (c *localComm) Rank() int { return c.rank }

func (c *localComm) Size() int { return c.world.size }

func (c *localComm) Send(ctx context.Context, to int, msg any) error {
	if to < 0 || to >= c.world.size {
		return fmt.Errorf("send from rank %d: destination %d out of range [0, %d)", c.rank, to, c.world.size)
	}
	select {
	case c.world.links[c.rank][to] <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send from rank %d to %d: %w", c.rank, to, ctx.Err())
	}
}

func (c *localComm) Recv(ctx context.Context, from int) (any, error) {
	if from < 0 || from >= c.world.size {
		return nil, fmt.Errorf("recv on rank %d: source %d out of range [0, %d)", c.rank, from, c.world.size)
	}
	select {
	case msg := <-c.world.links[from][c.rank]:
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("recv on rank %d from %d: %w", c.rank, from, ctx.Err())
	}
}

func (c *localComm) Barrier(ctx context.Context) error {
	w := c.world
	w.mu.Lock()
	release := w.release
	w.arrived++
	if w.arrived == w.size {
		w.arrived = 0
		w.release = make(chan struct{})
		close(release)
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("barrier on rank %d: %w", c.rank, ctx.Err())
	}
}

// Run executes fn on every rank of a new LocalWorld of n ranks and waits
// for all of them. The first error cancels the context of the others and
// is returned.
func Run(ctx context.Context, n int, fn func(ctx context.Context, c Comm) error) error {
	w := NewLocalWorld(n)
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < n; r++ {
		c := w.Rank(r)
		g.Go(func() error {
			if err := fn(gctx, c); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
