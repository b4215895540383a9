package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendToEmptyList(t *testing.T) {
	assert.Equal(t, int64(10000), Append(nil))
	assert.Equal(t, int64(10000), Append([]int64{}))
}

func TestAppendAfterExisting(t *testing.T) {
	assert.Equal(t, int64(30000), Append([]int64{10000, 20000}))
	// Max wins regardless of position in the slice.
	assert.Equal(t, int64(50000), Append([]int64{40000, 10000, 20000}))
}

func TestAppendAfterUnevenKeys(t *testing.T) {
	// Keys left behind by drags are not multiples of the gap.
	assert.Equal(t, int64(25000), Append([]int64{15000, 7500}))
}

func TestRespace(t *testing.T) {
	assert.Empty(t, Respace(0))
	assert.Equal(t, []int64{10000}, Respace(1))
	assert.Equal(t, []int64{10000, 20000, 30000}, Respace(3))
}

func TestRespaceLeavesRoomForInsertions(t *testing.T) {
	keys := Respace(5)
	for i := 1; i < len(keys); i++ {
		assert.Equal(t, Gap, keys[i]-keys[i-1])
	}
}
