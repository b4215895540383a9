// Package ordering maintains gapped integer order keys for drag-and-drop
// lists. New items append at max+Gap so later insertions between neighbours
// don't force a renumber; a full reorder re-spaces the whole sequence.
package ordering

// Gap is the spacing between consecutive order keys.
const Gap int64 = 10000

// Append returns the order index for an item added to the end of the list:
// strictly greater than every existing key.
func Append(existing []int64) int64 {
	var max int64
	for _, idx := range existing {
		if idx > max {
			max = idx
		}
	}
	return max + Gap
}

// Respace assigns fresh keys to a sequence of n items: (position+1)*Gap.
// Keys are strictly increasing and pairwise distinct.
func Respace(n int) []int64 {
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = int64(i+1) * Gap
	}
	return keys
}
