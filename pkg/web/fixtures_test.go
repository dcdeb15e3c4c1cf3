package web_test

import (
	"context"
	"sync"
	"time"

	"github.com/atlassian/statsdcore"
)

type fixedStats struct {
	s statsdcore.ReceiverStats
}

func (fs fixedStats) GetStats() statsdcore.ReceiverStats {
	return fs.s
}

type capturingControl struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (cc *capturingControl) Send(ctx context.Context, msg string) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.err != nil {
		return cc.err
	}
	cc.msgs = append(cc.msgs, msg)
	return nil
}

func (cc *capturingControl) Messages() []string {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	result := make([]string, len(cc.msgs))
	copy(result, cc.msgs)
	return result
}

func testContext() (context.Context, func()) {
	ctxTest, completeTest := context.WithTimeout(context.Background(), 1100*time.Millisecond)
	go func() {
		after := time.NewTimer(1 * time.Second)
		select {
		case <-ctxTest.Done():
			after.Stop()
		case <-after.C:
			panic("test timed out")
		}
	}()
	return ctxTest, completeTest
}
