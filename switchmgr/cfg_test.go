package switchmgr

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFormIsSorted(t *testing.T) {
	c := new(Cfg)
	c.SetString("zeta", "1")
	c.SetString("alpha", "2")
	c.SetString("mid", "3")

	assert.Equal(t, "alpha=2\nmid=3\nzeta=1\n", c.String())
}

func TestCanonicalFormPermutationInvariant(t *testing.T) {
	pairs := [][2]string{
		{"net.ports", "eth0"},
		{"net.ports", "eth1"},
		{"mode", "trunk"},
		{"net.ports", "eth0"}, // duplicate pair contributes its own line
	}

	a := new(Cfg)
	for _, p := range pairs {
		a.SetString(p[0], p[1])
	}

	b := new(Cfg)
	for i := len(pairs) - 1; i >= 0; i-- {
		b.SetString(pairs[i][0], pairs[i][1])
	}

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, a.Cookie(), b.Cookie())
}

func TestCookieIsSHA1OfCanonicalForm(t *testing.T) {
	c := new(Cfg)
	c.SetString("net.ports", "eth0")

	assert.True(t, c.IsDirty())
	want := Cookie(sha1.Sum([]byte("net.ports=eth0\n")))
	assert.Equal(t, want, c.Cookie())
}

func TestLoadClearsDirty(t *testing.T) {
	c := new(Cfg)
	c.SetString("junk", "1")
	c.Load([]byte("net.ports=eth0\nmode=access\n\nbroken-line\n"))

	assert.False(t, c.IsDirty())
	assert.Equal(t, "mode=access\nnet.ports=eth0\n", c.String())
	assert.False(t, c.HasKey("junk"))
	assert.False(t, c.HasKey("broken-line"))
}

func TestDuplicateKeysByIndex(t *testing.T) {
	c := new(Cfg)
	c.SetString("net.ports", "eth1")
	c.SetString("net.ports", "eth0")

	// Index order follows the canonical order.
	assert.Equal(t, "eth0", c.GetString(0, "net.ports"))
	assert.Equal(t, "eth1", c.GetString(1, "net.ports"))
	assert.Equal(t, "", c.GetString(2, "net.ports"))
}

func TestTypedAccessors(t *testing.T) {
	c := new(Cfg)
	c.SetInt("count", 42)
	c.SetBool("enabled", true)
	c.SetBool("disabled", false)
	c.SetVlan("vlan", 100)

	assert.Equal(t, 42, c.GetInt(0, "count"))
	assert.True(t, c.GetBool(0, "enabled"))
	assert.False(t, c.GetBool(0, "disabled"))
	assert.Equal(t, 100, c.GetVlan(0, "vlan"))

	// Missing and malformed values.
	assert.Equal(t, 0, c.GetInt(0, "absent"))
	assert.False(t, c.GetBool(0, "absent"))
	assert.Equal(t, -1, c.GetVlan(0, "absent"))
	c.SetString("text", "abc")
	assert.Equal(t, 0, c.GetInt(0, "text"))
	assert.Equal(t, -1, c.GetVlan(0, "text"))
}

func TestVlanSetterRejectsOutOfRange(t *testing.T) {
	c := new(Cfg)
	c.SetVlan("vlan", -1)
	c.SetVlan("vlan", 4096)

	assert.False(t, c.HasKey("vlan"))
	assert.False(t, c.IsDirty())

	c.SetVlan("vlan", 4095)
	assert.Equal(t, 4095, c.GetVlan(0, "vlan"))
}

func TestDelEntryRemovesFirstMatch(t *testing.T) {
	c := new(Cfg)
	c.SetString("k", "v")
	c.SetString("k", "v")
	c.SetString("k", "other")
	c.SetDirty(false)

	c.DelEntry("k", "v")
	assert.True(t, c.IsDirty())
	assert.Equal(t, "k=other\nk=v\n", c.String())

	c.DelEntry("k", "missing")
	assert.Equal(t, "k=other\nk=v\n", c.String())
}

func TestPrefixKeys(t *testing.T) {
	c := new(Cfg)
	c.SetString("net.ports", "eth0")
	c.SetString("net.mode", "trunk")
	c.SetString("mgmt.id", "7")

	keys := c.PrefixKeys("net.")
	assert.ElementsMatch(t, []string{"net.ports", "net.mode"}, keys)
}

func TestMalformedEntriesDropped(t *testing.T) {
	c := new(Cfg)
	c.AddEntry("bad=key", "v")
	c.AddEntry("bad\nkey", "v")
	c.AddEntry("key", "bad\nvalue")
	c.AddEntry("", "v")

	assert.Equal(t, "", c.String())
	assert.False(t, c.IsDirty())
}

func TestCloneIsIndependent(t *testing.T) {
	c := new(Cfg)
	c.SetString("k", "v")
	clone := c.Clone()
	clone.SetString("k2", "v2")

	assert.False(t, c.HasKey("k2"))
	require.True(t, clone.HasKey("k"))
}
