package workers

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/aatumaykin/agentpool/internal/logger"
)

// run executes fn and recovers a panic so one goroutine cannot take the
// process down.
func (g *Group) run(name string, fn func(ctx context.Context)) {
	defer g.wg.Done()
	defer g.finish()
	defer func() {
		if r := recover(); r != nil {
			g.recordPanic()
			g.logger.Error("goroutine panic recovered",
				fmt.Errorf("panic: %v", r),
				logger.Field{Key: "name", Value: name},
				logger.Field{Key: "stack", Value: string(debug.Stack())})
		}
	}()

	fn(g.ctx)
}
