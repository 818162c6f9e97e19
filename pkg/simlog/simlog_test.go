package simlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, LevelInfo, parseLevel(""))
	assert.Equal(t, LevelDebug, parseLevel("debug"))
	assert.Equal(t, LevelOff, parseLevel("off"))
}

func TestFromEnvParsesInternalTagAllowlist(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug:internal:broker,scheduler")
	l := FromEnv()
	assert.Equal(t, LevelDebug, l.min)
	assert.True(t, l.tags["broker"])
	assert.True(t, l.tags["scheduler"])
	assert.False(t, l.tags["node"])
}

func TestFromEnvAcceptsBareInternalForm(t *testing.T) {
	t.Setenv("LOG_LEVEL", "internal:broker")
	l := FromEnv()
	assert.Equal(t, LevelDebug, l.min)
	assert.True(t, l.tags["broker"])
	assert.False(t, l.tags["node"])
}

func TestFromEnvWithoutTagsAllowsAll(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	l := FromEnv()
	assert.Nil(t, l.tags)
}
