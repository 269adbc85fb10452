package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdala/minicon/pkg/errors"
)

func TestDefaultPlugins(t *testing.T) {
	pc := DefaultPlugins()

	for _, name := range []string{PluginLink, PluginWhich, PluginFolder, PluginLdd, PluginScripts} {
		assert.True(t, pc.Active(name), name)
	}
	assert.False(t, pc.Active(PluginStrace))
}

func TestActivate_Grammar(t *testing.T) {
	pc := DefaultPlugins()

	err := pc.Activate("strace:mode=slim:seconds=5,scripts:includefolders=true")
	require.NoError(t, err)

	assert.True(t, pc.Active(PluginStrace))
	assert.Equal(t, "slim", pc.Param(PluginStrace, "mode", ""))
	assert.Equal(t, "5", pc.Param(PluginStrace, "seconds", ""))
	assert.True(t, pc.BoolParam(PluginScripts, "includefolders", false))
}

func TestActivate_MergesParameters(t *testing.T) {
	pc := DefaultPlugins()

	require.NoError(t, pc.Activate("strace:mode=slim"))
	require.NoError(t, pc.Activate("strace:seconds=10"))

	assert.Equal(t, "slim", pc.Param(PluginStrace, "mode", ""))
	assert.Equal(t, "10", pc.Param(PluginStrace, "seconds", ""))
}

func TestActivate_UnknownPlugin(t *testing.T) {
	pc := DefaultPlugins()
	err := pc.Activate("turbo")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigValid))
}

func TestActivate_MalformedParameter(t *testing.T) {
	pc := DefaultPlugins()
	assert.Error(t, pc.Activate("strace:seconds"))
	assert.Error(t, pc.Activate("strace:=5"))
}

func TestActivateAll(t *testing.T) {
	pc := DefaultPlugins()
	pc.ActivateAll()
	for _, name := range KnownPlugins {
		assert.True(t, pc.Active(name), name)
	}
}

func TestDeactivate(t *testing.T) {
	pc := DefaultPlugins()
	pc.Deactivate(PluginScripts)
	assert.False(t, pc.Active(PluginScripts))
}

func TestParam_Fallbacks(t *testing.T) {
	pc := DefaultPlugins()

	assert.Equal(t, "3", pc.Param(PluginStrace, "seconds", "3"))
	assert.Equal(t, "x", pc.Param(PluginLink, "missing", "x"))
	assert.False(t, pc.BoolParam(PluginStrace, "showoutput", false))
	assert.True(t, pc.BoolParam(PluginStrace, "showoutput", true))
}

func TestBoolParam_Values(t *testing.T) {
	pc := DefaultPlugins()
	require.NoError(t, pc.Activate("scripts:includefolders=TRUE"))
	assert.True(t, pc.BoolParam(PluginScripts, "includefolders", false))

	require.NoError(t, pc.Activate("scripts:includefolders=false"))
	assert.False(t, pc.BoolParam(PluginScripts, "includefolders", true))
}
