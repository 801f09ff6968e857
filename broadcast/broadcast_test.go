package broadcast_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bdube/thorapt/broadcast"
)

func ExampleSender_Broadcast() {
	tx, rx := broadcast.New()
	go tx.Broadcast([]byte("hello"))
	v, _ := rx.Recv(context.Background())
	fmt.Println(string(v))
	// Output: hello
}

func TestFanOut(t *testing.T) {
	tx, rx1 := broadcast.New()
	rx2 := tx.NewReceiver()
	rx3 := rx1.Clone()

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = tx.Broadcast([]byte{1, 2, 3})
	}()

	var wg sync.WaitGroup
	results := make([][]byte, 3)
	for i, rx := range []*broadcast.Receiver{rx1, rx2, rx3} {
		wg.Add(1)
		go func(i int, rx *broadcast.Receiver) {
			defer wg.Done()
			v, err := rx.Recv(context.Background())
			if err != nil {
				t.Errorf("receiver %d: %v", i, err)
				return
			}
			results[i] = v
		}(i, rx)
	}
	wg.Wait()

	for i, got := range results {
		if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
			t.Errorf("receiver %d got %v, want [1 2 3]", i, got)
		}
	}
}

func TestClosedWithoutValue(t *testing.T) {
	tx, rx := broadcast.New()
	tx.Close()
	_, err := rx.Recv(context.Background())
	if err != broadcast.ErrClosed {
		t.Errorf("Recv error = %v, want ErrClosed", err)
	}
}

func TestRecvRespectsContext(t *testing.T) {
	_, rx := broadcast.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := rx.Recv(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Recv error = %v, want DeadlineExceeded", err)
	}
}
