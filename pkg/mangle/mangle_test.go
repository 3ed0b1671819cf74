package mangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMangleFile_ExtensionlessNameKeepsTrailingDot(t *testing.T) {
	name, err := MangleFile("foo", InterchangeLevel1)
	require.NoError(t, err)
	assert.Equal(t, "FOO.;1", name)
}

func TestMangleFile_UppercasesAndAppendsVersion(t *testing.T) {
	name, err := MangleFile("readme.txt", InterchangeLevel1)
	require.NoError(t, err)
	assert.Equal(t, "README.TXT;1", name)
}

func TestMangleFile_Level1TruncatesNameAndExtension(t *testing.T) {
	name, err := MangleFile("verylongname.txtx", InterchangeLevel1)
	require.NoError(t, err)
	assert.Equal(t, "VERYLONG.TXT;1", name)
}

func TestMangleFile_Level2AllowsUpTo30Characters(t *testing.T) {
	name, err := MangleFile("averylongfilenamethatfits.txt", InterchangeLevel2)
	require.NoError(t, err)
	assert.Equal(t, "AVERYLONGFILENAMETHATFITS.TXT;1", name)
}

func TestMangleFile_RejectsEmptyName(t *testing.T) {
	_, err := MangleFile("", InterchangeLevel1)
	assert.Error(t, err)
}

func TestMangleFile_RejectsInvalidDCharacter(t *testing.T) {
	_, err := MangleFile("bad name!.txt", InterchangeLevel1)
	assert.Error(t, err)
}

func TestMangleDirectory_TruncatesToLevel1Length(t *testing.T) {
	name, err := MangleDirectory("verylongdirectoryname", InterchangeLevel1)
	require.NoError(t, err)
	assert.Equal(t, "VERYLONG", name)
}

func TestMangleDirectory_RejectsEmptyName(t *testing.T) {
	_, err := MangleDirectory("", InterchangeLevel1)
	assert.Error(t, err)
}
