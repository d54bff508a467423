package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocation_StateAbbreviationAliases(t *testing.T) {
	assert.Equal(t, 1.0, Location("Austin, TX", false, "Austin, Texas", false))
	assert.Equal(t, 1.0, Location("Portland, OR", false, "Portland, Oregon", false))
}

func TestLocation_BothRemote_FullMatchRegardlessOfLocale(t *testing.T) {
	assert.Equal(t, 1.0, Location("Remote", true, "Anywhere", true))
	// Remote flag wins even when the named locales differ
	assert.Equal(t, 1.0, Location("Austin, TX", true, "Boston, MA", true))
}

func TestLocation_RemoteMarkerInText(t *testing.T) {
	// A "remote" location string counts as remote without the flag
	assert.Equal(t, 1.0, Location("remote", false, "Work From Home", false))
}

func TestLocation_RemoteMismatch(t *testing.T) {
	assert.Equal(t, 0.0, Location("Austin, TX", false, "Remote", true))
}

func TestLocation_DifferentCities(t *testing.T) {
	score := Location("Austin, Texas", false, "Boston, Massachusetts", false)
	assert.Less(t, score, 0.6)
}

func TestLocation_EmptyInputs(t *testing.T) {
	assert.Equal(t, 1.0, Location("", false, "", false))
	assert.Equal(t, 0.0, Location("Austin, TX", false, "", false))
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "austin texas", NormalizeLocation("Austin, TX"))
	assert.Equal(t, "new york new york", NormalizeLocation("New York, NY"))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("Remote"))
	assert.True(t, IsRemote("work from home"))
	assert.False(t, IsRemote("Austin, TX"))
}
