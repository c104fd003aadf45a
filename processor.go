package reqlog

import "context"

// Processor transforms a record before it is buffered. The context is that of the request (if any) that emitted
// the record. Processors must return a new record rather than mutate the maps of the one they receive.
type Processor func(ctx context.Context, rec Record) Record

// Chain composes processors. The order is that of the arguments: the processor provided first sees the record
// first, the processor provided last produces the final record.
func Chain(ps ...Processor) Processor {
	return func(ctx context.Context, rec Record) Record {
		for _, p := range ps {
			if p == nil {
				continue
			}
			rec = p(ctx, rec)
		}

		return rec
	}
}
