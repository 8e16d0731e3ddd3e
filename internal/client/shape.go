package client

import (
	"fmt"

	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// requestShape names the dispatch form of a write request. Classification
// happens before any network traffic so invalid inputs fail fast.
type requestShape int

const (
	// shapeEmpty is a no-op request with nothing to send.
	shapeEmpty requestShape = iota

	// shapeSingle targets one record through the plain CRUD endpoint.
	shapeSingle

	// shapeBulk targets many records through a xMultiple action.
	shapeBulk

	// shapeBroadcast applies one change set to every id.
	shapeBroadcast

	// shapePairwise applies the i-th change set to the i-th id.
	shapePairwise
)

// classifyCreate picks the dispatch form for a create request.
func classifyCreate(records []dataverse.Record) requestShape {
	switch len(records) {
	case 0:
		return shapeEmpty
	case 1:
		return shapeSingle
	default:
		return shapeBulk
	}
}

// classifyUpdate picks the dispatch form for an update request. changes must
// hold either a single change set, broadcast to every id, or exactly one per
// id. Anything else is a shape mismatch.
func classifyUpdate(ids []string, changes []dataverse.Record) (requestShape, error) {
	if len(ids) == 0 {
		return shapeEmpty, nil
	}

	switch {
	case len(changes) == len(ids):
		if len(ids) == 1 {
			return shapeSingle, nil
		}

		return shapePairwise, nil
	case len(changes) == 1:
		return shapeBroadcast, nil
	default:
		return shapeEmpty, fmt.Errorf("%w: %d ids, %d change sets",
			dataverse.ErrUpdateShapeMismatch, len(ids), len(changes))
	}
}
