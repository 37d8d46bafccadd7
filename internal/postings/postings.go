// Package postings implements the positional postings data model of
// spec.md §3-4.2: PostingItem (Item), PostingList (List), and the two
// on-disk encodings (raw fixed-width and Golomb bitstream). The in-memory
// token_id -> List index lives in internal/buffer. It is adapted
// from the teacher's core/indexer.go linked-list postings representation,
// generalized to slices and to the spec's two codecs instead of
// variable-byte encoding.
package postings

import (
	"encoding/binary"
	"sort"

	"github.com/wiser-go/wiser/internal/codec"
)

// CompressMethod selects the on-disk postings encoding.
type CompressMethod int

const (
	// None stores postings as little-endian fixed-width integers.
	None CompressMethod = iota
	// Golomb stores postings as a Golomb-Rice coded bitstream.
	Golomb
)

// Golomb-Rice divisor parameters fixed by spec.md §4.2.
const (
	mDoc   = 128
	mCount = 8
	mPos   = 16
)

// Item is one document's occurrences of a token: doc id plus the sorted,
// duplicate-free positions at which the token occurs.
type Item struct {
	DocID     int32
	Positions []int32
}

// List is a token's full postings: items ordered by ascending, unique
// DocID (spec.md §3 invariants).
type List struct {
	Items []Item
}

// Add appends a single (doc, position) occurrence to the list, inserting a
// new Item in doc-id order if necessary. Used while tokenizing a document
// into the in-memory ingest buffer (spec.md §4.3): positions for a given
// doc arrive in increasing order because a document is tokenized
// contiguously, so they are simply appended.
func (l *List) Add(docID, position int32) {
	n := len(l.Items)
	if n > 0 && l.Items[n-1].DocID == docID {
		l.Items[n-1].Positions = append(l.Items[n-1].Positions, position)
		return
	}
	i := sort.Search(n, func(i int) bool { return l.Items[i].DocID >= docID })
	if i < n && l.Items[i].DocID == docID {
		l.Items[i].Positions = append(l.Items[i].Positions, position)
		return
	}
	l.Items = append(l.Items, Item{})
	copy(l.Items[i+1:], l.Items[i:])
	l.Items[i] = Item{DocID: docID, Positions: []int32{position}}
}

// DocumentsCount returns the number of distinct documents in the list.
func (l *List) DocumentsCount() int32 {
	return int32(len(l.Items))
}

// Merge combines other into l in place, producing a list whose items are
// sorted ascending by DocID and whose positions, for any doc id present in
// both lists, are concatenated and re-sorted ascending with duplicates
// removed — the flush-time merge semantics of spec.md §4.3 and §4.5.
func (l *List) Merge(other *List) {
	if other == nil || len(other.Items) == 0 {
		return
	}
	if len(l.Items) == 0 {
		l.Items = other.Items
		return
	}

	merged := make([]Item, 0, len(l.Items)+len(other.Items))
	i, j := 0, 0
	for i < len(l.Items) && j < len(other.Items) {
		a, b := l.Items[i], other.Items[j]
		switch {
		case a.DocID < b.DocID:
			merged = append(merged, a)
			i++
		case a.DocID > b.DocID:
			merged = append(merged, b)
			j++
		default:
			merged = append(merged, Item{DocID: a.DocID, Positions: mergePositions(a.Positions, b.Positions)})
			i++
			j++
		}
	}
	merged = append(merged, l.Items[i:]...)
	merged = append(merged, other.Items[j:]...)
	l.Items = merged
}

func mergePositions(a, b []int32) []int32 {
	out := make([]int32, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	// Dedupe: the final merged list must contain no duplicate positions
	// (spec.md §3 PostingItem invariant).
	dedup := out[:0]
	var prev int32 = -1
	first := true
	for _, p := range out {
		if first || p != prev {
			dedup = append(dedup, p)
			prev = p
			first = false
		}
	}
	return dedup
}

// Serialize encodes the list using the given method. It is pure: it does
// not mutate l.
func (l *List) Serialize(method CompressMethod) []byte {
	switch method {
	case Golomb:
		return l.serializeGolomb()
	default:
		return l.serializeRaw()
	}
}

func (l *List) serializeRaw() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(l.Items)))
	for _, item := range l.Items {
		itemBuf := make([]byte, 8+4*len(item.Positions))
		binary.LittleEndian.PutUint32(itemBuf[0:4], uint32(item.DocID))
		binary.LittleEndian.PutUint32(itemBuf[4:8], uint32(len(item.Positions)))
		for i, p := range item.Positions {
			binary.LittleEndian.PutUint32(itemBuf[8+4*i:12+4*i], uint32(p))
		}
		buf = append(buf, itemBuf...)
	}
	return buf
}

func (l *List) serializeGolomb() []byte {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(l.Items)))

	w := codec.NewBitWriter()
	var prevDoc int32
	for _, item := range l.Items {
		codec.GolombEncode(w, uint32(item.DocID-prevDoc), mDoc)
		prevDoc = item.DocID

		codec.GolombEncode(w, uint32(len(item.Positions)), mCount)

		var prevPos int32
		for _, p := range item.Positions {
			codec.GolombEncode(w, uint32(p-prevPos), mPos)
			prevPos = p
		}
	}
	return append(header, w.Bytes()...)
}

// Deserialize reconstructs a List from bytes produced by Serialize with the
// same method. On malformed input it returns whatever items it managed to
// decode along with ok=false (spec.md §4.2's graceful degrade-on-corruption
// contract; callers treat ok=false as DataCorruption and use the partial
// list, which may be empty).
func Deserialize(data []byte, method CompressMethod) (*List, bool) {
	if method == Golomb {
		return deserializeGolomb(data)
	}
	return deserializeRaw(data)
}

func deserializeRaw(data []byte) (*List, bool) {
	if len(data) < 4 {
		return &List{}, len(data) == 0
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	pos := 4
	items := make([]Item, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(data) {
			return &List{Items: items}, false
		}
		docID := int32(binary.LittleEndian.Uint32(data[pos : pos+4]))
		posCount := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		pos += 8
		if pos+4*int(posCount) > len(data) {
			return &List{Items: items}, false
		}
		positions := make([]int32, posCount)
		for j := uint32(0); j < posCount; j++ {
			positions[j] = int32(binary.LittleEndian.Uint32(data[pos : pos+4]))
			pos += 4
		}
		items = append(items, Item{DocID: docID, Positions: positions})
	}
	return &List{Items: items}, true
}

func deserializeGolomb(data []byte) (*List, bool) {
	if len(data) < 4 {
		return &List{}, len(data) == 0
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	r := codec.NewBitReader(data[4:])

	items := make([]Item, 0, count)
	var prevDoc int32
	for i := uint32(0); i < count; i++ {
		delta, ok := codec.GolombDecode(r, mDoc)
		if !ok {
			return &List{Items: items}, false
		}
		docID := prevDoc + int32(delta)
		prevDoc = docID

		posCount, ok := codec.GolombDecode(r, mCount)
		if !ok {
			return &List{Items: items}, false
		}

		positions := make([]int32, 0, posCount)
		var prevPos int32
		ok2 := true
		for j := uint32(0); j < posCount; j++ {
			d, ok3 := codec.GolombDecode(r, mPos)
			if !ok3 {
				ok2 = false
				break
			}
			p := prevPos + int32(d)
			prevPos = p
			positions = append(positions, p)
		}
		items = append(items, Item{DocID: docID, Positions: positions})
		if !ok2 {
			return &List{Items: items}, false
		}
	}
	return &List{Items: items}, true
}
