package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketFor(t *testing.T) {
	assert.Equal(t, AgingCurrent, BucketFor(-5))
	assert.Equal(t, AgingCurrent, BucketFor(0))
	assert.Equal(t, Aging1To30, BucketFor(1))
	assert.Equal(t, Aging1To30, BucketFor(30))
	assert.Equal(t, Aging31To60, BucketFor(31))
	assert.Equal(t, Aging31To60, BucketFor(60))
	assert.Equal(t, Aging61To90, BucketFor(61))
	assert.Equal(t, Aging61To90, BucketFor(90))
	assert.Equal(t, AgingOver90, BucketFor(91))
	assert.Equal(t, AgingOver90, BucketFor(365))
}
