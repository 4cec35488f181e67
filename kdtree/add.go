package kdtree

import (
	"errors"

	"github.com/molecularmodelinglab/simsearchserver/internal/descriptor"
	"github.com/molecularmodelinglab/simsearchserver/internal/nodetable"
	"github.com/molecularmodelinglab/simsearchserver/internal/page"
)

// Add ingests one record: append to the content database, descend to the
// owning leaf, and insert — splitting the leaf on overflow (§4.6).
func (t *Tree) Add(rec CompoundRecord) error {
	if err := rec.Descriptor.Validate(t.cfg.DescLength); err != nil {
		t.logf("add: rejected: %v", err)
		return err
	}

	index, err := t.content.Append(rec.Smiles, rec.Identifier)
	if err != nil {
		t.logf("add: rejected: %v", err)
		return err
	}

	treeRec := descriptor.TreeRecord{Index: index, Descriptor: rec.Descriptor}

	leafIdx, parentIdx, parentArm, hasParent := t.descendToLeaf(treeRec.Descriptor)

	lp, err := t.pager.Get(leafIdx)
	if err != nil {
		return err
	}

	if err := lp.Add(treeRec); err == nil {
		if err := t.pager.Update(leafIdx, lp); err != nil {
			return err
		}
		t.logf("add: index=%d outcome=ok", index)
		return nil
	} else if !errors.Is(err, page.ErrPageFull) {
		return err
	}

	if err := t.split(leafIdx, parentIdx, parentArm, hasParent, treeRec); err != nil {
		return err
	}
	t.logf("add: index=%d outcome=ok (split)", index)
	return nil
}

// descendToLeaf walks from root to the leaf that owns desc, returning the
// leaf page index, the parent node index (if any), the arm taken at the
// parent, and whether a parent exists.
func (t *Tree) descendToLeaf(desc descriptor.Descriptor) (leafIdx uint64, parentIdx uint64, parentArm direction, hasParent bool) {
	current := t.root

	for current.IsNode() {
		node, err := t.nodes.Get(current.Index)
		if err != nil {
			break
		}

		parentIdx = current.Index
		hasParent = true

		if desc[node.Axis] <= node.SplitValue {
			parentArm = dirLeft
			current = node.Left
		} else {
			parentArm = dirRight
			current = node.Right
		}
	}

	return current.Index, parentIdx, parentArm, hasParent
}

// split partitions an overflowed leaf's records (plus the record that
// didn't fit) around the median value on a chosen axis, writes the left
// half back into the same page, allocates a new page for the right half,
// and creates (or rewires) the internal node above them (§4.6).
func (t *Tree) split(leafIdx uint64, parentIdx uint64, parentArm direction, hasParent bool, overflow descriptor.TreeRecord) error {
	lp, err := t.pager.Get(leafIdx)
	if err != nil {
		return err
	}
	existing, err := lp.Records()
	if err != nil {
		return err
	}

	all := make([]descriptor.TreeRecord, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, overflow)

	startAxis := 0
	if hasParent {
		parentNode, err := t.nodes.Get(parentIdx)
		if err == nil {
			startAxis = (int(parentNode.Axis) + 1) % t.cfg.DescLength
		}
	}

	axis, left, right := chooseSplit(all, startAxis, t.cfg.DescLength)

	leftPage, err := page.New(t.cfg.RecordPageLength, t.cfg.DescLength)
	if err != nil {
		return err
	}
	for _, r := range left {
		if err := leftPage.Add(r); err != nil {
			return err
		}
	}
	if err := t.pager.Update(leafIdx, leftPage); err != nil {
		return err
	}

	rightPage, err := page.New(t.cfg.RecordPageLength, t.cfg.DescLength)
	if err != nil {
		return err
	}
	for _, r := range right {
		if err := rightPage.Add(r); err != nil {
			return err
		}
	}
	newLeafIdx, err := t.pager.Append(rightPage)
	if err != nil {
		return err
	}

	medianVal := medianOf(all, axis)

	newNode := nodetable.Node{
		Left:       nodetable.LeafRef(leafIdx),
		Right:      nodetable.LeafRef(newLeafIdx),
		Axis:       uint8(axis),
		SplitValue: medianVal,
	}
	newNodeIdx := t.nodes.Add(newNode)

	if !hasParent {
		t.root = nodetable.NodeRef(newNodeIdx)
		return nil
	}

	parentNode, err := t.nodes.Get(parentIdx)
	if err != nil {
		return err
	}
	if parentArm == dirLeft {
		parentNode.Left = nodetable.NodeRef(newNodeIdx)
	} else {
		parentNode.Right = nodetable.NodeRef(newNodeIdx)
	}
	return t.nodes.Update(parentIdx, parentNode)
}

func medianOf(records []descriptor.TreeRecord, axis int) float32 {
	vals := make([]float32, len(records))
	for i, r := range records {
		vals[i] = r.Descriptor[axis]
	}
	return median(sortDescriptorValues(vals))
}

// chooseSplit picks a split axis starting at startAxis, cycling through up
// to D axes to avoid a degenerate split (every value identical on the
// chosen axis, leaving the right bucket empty). If every axis is
// degenerate it falls back to startAxis and accepts the degenerate split,
// as spec.md §4.6/§9 explicitly permits.
func chooseSplit(records []descriptor.TreeRecord, startAxis, d int) (axis int, left, right []descriptor.TreeRecord) {
	for attempt := 0; attempt < d; attempt++ {
		a := (startAxis + attempt) % d
		m := medianOf(records, a)

		l, r := partition(records, a, m)
		if len(r) > 0 {
			return a, l, r
		}
	}

	m := medianOf(records, startAxis)
	l, r := partition(records, startAxis, m)
	return startAxis, l, r
}

func partition(records []descriptor.TreeRecord, axis int, medianVal float32) (left, right []descriptor.TreeRecord) {
	for _, r := range records {
		if r.Descriptor[axis] <= medianVal {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}
