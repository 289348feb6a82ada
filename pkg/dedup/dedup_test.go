package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcessSuppressesRedelivery(t *testing.T) {
	d := New(time.Minute, 100)

	assert.True(t, d.ShouldProcess("ev-1"), "first delivery must pass")
	assert.False(t, d.ShouldProcess("ev-1"), "redelivery within ttl must be suppressed")
	assert.True(t, d.ShouldProcess("ev-2"), "unrelated id must pass")
}

func TestShouldProcessAfterExpiry(t *testing.T) {
	d := New(10*time.Millisecond, 100)

	assert.True(t, d.ShouldProcess("ev-1"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, d.ShouldProcess("ev-1"), "expired entry must be processed again")
}

func TestShouldProcessEmptyID(t *testing.T) {
	d := New(time.Minute, 100)

	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""), "empty ids are never deduplicated")
}

func TestPayloadKeyStable(t *testing.T) {
	a := PayloadKey("ndvi/composite/bhopal", []byte(`{"ndvi":0.71}`))
	b := PayloadKey("ndvi/composite/bhopal", []byte(`{"ndvi":0.71}`))
	c := PayloadKey("ndvi/composite/bhopal", []byte(`{"ndvi":0.72}`))
	d := PayloadKey("ndvi/composite/indore", []byte(`{"ndvi":0.71}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "different payloads must yield different keys")
	assert.NotEqual(t, a, d, "different topics must yield different keys")
}
