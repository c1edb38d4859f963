package filters

import (
	"errors"
	"runtime/debug"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// Recovery turns a panic in downstream filters or the handler into a failed
// completion carrying an *async.PanicError. Panics already captured by
// asynchronous work are logged the same way.
type Recovery struct {
	opts options
}

// NewRecovery creates a Recovery filter.
func NewRecovery(opts ...Option) *Recovery {
	return &Recovery{opts: newOptions(opts)}
}

// Name implements filter.Named.
func (f *Recovery) Name() string { return "Recovery" }

// Order implements filter.Ordered.
func (f *Recovery) Order() int { return OrderRecovery }

// Filter implements filter.Filter.
func (f *Recovery) Filter(ex *exchange.Exchange, chain filter.Chain) (result *async.Completion) {
	defer func() {
		if v := recover(); v != nil {
			pe := &async.PanicError{Value: v, Stack: debug.Stack()}
			f.log(ex, pe)
			result = async.Fail(pe)
		}
	}()

	return async.Finally(chain.Filter(ex), func(_ struct{}, err error) {
		var pe *async.PanicError
		if errors.As(err, &pe) {
			f.log(ex, pe)
		}
	})
}

func (f *Recovery) log(ex *exchange.Exchange, pe *async.PanicError) {
	r := ex.Request()
	f.opts.logger.Error("panic recovered",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Any("error", pe.Value),
		observability.String("stack", string(pe.Stack)),
	)
}
