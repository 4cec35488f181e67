package kdtree

import (
	"container/list"

	"github.com/molecularmodelinglab/simsearchserver/internal/descriptor"
	"github.com/molecularmodelinglab/simsearchserver/internal/nodetable"
)

type workAction int

const (
	actionDescend workAction = iota
	actionCheckIgnored
)

type direction int

const (
	dirNone direction = iota
	dirLeft
	dirRight
)

type workItem struct {
	ptr       nodetable.PagePointer
	action    workAction
	direction direction
}

// NearestNeighbor is one hit returned by Query: the distance to the query
// descriptor plus the rehydrated compound record (§4.7, §6).
type NearestNeighbor struct {
	Distance   float32
	Smiles     string
	Identifier string
	Descriptor descriptor.Descriptor
}

// Query performs branch-and-bound k-nearest-neighbor search: exact
// Euclidean k-NN under axis-aligned pruning, returned sorted ascending by
// distance (§4.7).
func (t *Tree) Query(q descriptor.Descriptor, k int) ([]NearestNeighbor, error) {
	if err := q.Validate(t.cfg.DescLength); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	buffer := newTopK(k)
	queue := list.New()
	queue.PushBack(workItem{ptr: t.root, action: actionDescend})

	for queue.Len() > 0 {
		front := queue.Front()
		item := front.Value.(workItem)
		queue.Remove(front)

		switch item.action {
		case actionDescend:
			if err := t.descend(item.ptr, q, buffer, queue); err != nil {
				return nil, err
			}
		case actionCheckIgnored:
			t.checkIgnored(item, q, buffer, queue)
		}
	}

	return t.rehydrate(buffer)
}

func (t *Tree) descend(ptr nodetable.PagePointer, q descriptor.Descriptor, buffer *topK, queue *list.List) error {
	if ptr.IsLeaf() {
		lp, err := t.pager.Get(ptr.Index)
		if err != nil {
			// A corrupt or missing leaf page during a read-only query is
			// logged and skipped rather than aborting the whole scan
			// (§7 IoError, resolved in DESIGN.md).
			t.logf("query: skipping unreadable leaf page %d: %v", ptr.Index, err)
			return nil
		}

		records, err := lp.Records()
		if err != nil {
			t.logf("query: skipping corrupt leaf page %d: %v", ptr.Index, err)
			return nil
		}

		for _, rec := range records {
			dist := descriptor.Distance(q, rec.Descriptor)
			buffer.tryAdd(dist, rec)
		}
		return nil
	}

	node, err := t.nodes.Get(ptr.Index)
	if err != nil {
		return err
	}

	var near nodetable.PagePointer
	var farDirection direction
	if q[node.Axis] <= node.SplitValue {
		near = node.Left
		farDirection = dirRight
	} else {
		near = node.Right
		farDirection = dirLeft
	}

	queue.PushFront(workItem{ptr: near, action: actionDescend})
	queue.PushBack(workItem{ptr: ptr, action: actionCheckIgnored, direction: farDirection})

	return nil
}

func (t *Tree) checkIgnored(item workItem, q descriptor.Descriptor, buffer *topK, queue *list.List) {
	node, err := t.nodes.Get(item.ptr.Index)
	if err != nil {
		return
	}

	axisDist := descriptor.AxisDistance(q, int(node.Axis), node.SplitValue)
	if axisDist >= buffer.worstDistance() {
		return
	}

	var child nodetable.PagePointer
	if item.direction == dirLeft {
		child = node.Left
	} else {
		child = node.Right
	}

	queue.PushFront(workItem{ptr: child, action: actionDescend})
}

func (t *Tree) rehydrate(buffer *topK) ([]NearestNeighbor, error) {
	entries := buffer.sorted()
	out := make([]NearestNeighbor, 0, len(entries))
	for _, e := range entries {
		smiles, identifier, err := t.content.Get(e.record.Index)
		if err != nil {
			return nil, err
		}
		out = append(out, NearestNeighbor{
			Distance:   e.distance,
			Smiles:     smiles,
			Identifier: identifier,
			Descriptor: e.record.Descriptor,
		})
	}
	return out, nil
}
