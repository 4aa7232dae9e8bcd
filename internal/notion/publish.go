package notion

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/docblocks/internal/blocks"
)

// MaxBlocksPerRequest is the most children Notion accepts in one append.
const MaxBlocksPerRequest = 100

// ErrBatchDelivery marks a failed batch append. Earlier batches stay applied.
var ErrBatchDelivery = errors.New("batch delivery failed")

// Appender appends blocks to a page. *Client implements it.
type Appender interface {
	AppendBlocks(ctx context.Context, pageID string, bs []blocks.Block) error
}

// Result summarizes one delivery.
type Result struct {
	Success          bool `json:"success" yaml:"success"`
	TotalBlocks      int  `json:"total_blocks" yaml:"total_blocks"`
	BatchesDelivered int  `json:"batches_delivered" yaml:"batches_delivered"`
	BlocksDelivered  int  `json:"blocks_delivered" yaml:"blocks_delivered"`
}

// BatchDeliveryError reports which batch failed and how much had already
// been applied.
type BatchDeliveryError struct {
	Batch     int // zero-based index of the failed batch
	Delivered int // blocks applied before the failure
	Err       error
}

func (e *BatchDeliveryError) Error() string {
	return fmt.Sprintf("batch %d (after %d blocks delivered): %v", e.Batch, e.Delivered, e.Err)
}

func (e *BatchDeliveryError) Unwrap() []error { return []error{ErrBatchDelivery, e.Err} }

// Publish appends bs to pageID in consecutive batches of at most
// MaxBlocksPerRequest, one call per batch, stopping at the first failure.
func Publish(ctx context.Context, a Appender, pageID string, bs []blocks.Block) (Result, error) {
	res := Result{TotalBlocks: len(bs)}
	for start, batch := 0, 0; start < len(bs); start, batch = start+MaxBlocksPerRequest, batch+1 {
		end := min(start+MaxBlocksPerRequest, len(bs))
		if err := ctx.Err(); err != nil {
			return res, &BatchDeliveryError{Batch: batch, Delivered: res.BlocksDelivered, Err: err}
		}
		if err := a.AppendBlocks(ctx, pageID, bs[start:end]); err != nil {
			return res, &BatchDeliveryError{Batch: batch, Delivered: res.BlocksDelivered, Err: err}
		}
		res.BatchesDelivered++
		res.BlocksDelivered += end - start
	}
	res.Success = true
	return res, nil
}

// Deliver converts doc and publishes the blocks to pageID. A missing start
// marker fails with blocks.ErrNoContentMarker before any network call.
func Deliver(ctx context.Context, a Appender, pageID string, doc blocks.Document, opts blocks.Options) (Result, error) {
	bs, err := blocks.Convert(doc, opts)
	if err != nil {
		return Result{}, err
	}
	return Publish(ctx, a, pageID, bs)
}
