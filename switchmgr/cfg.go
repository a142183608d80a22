package switchmgr

import (
	"crypto/sha1"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CookieLen is the length of a configuration cookie: an SHA-1 digest
// over the canonical serialization.
const CookieLen = sha1.Size

type Cookie [CookieLen]byte

type entry struct {
	key, value string
}

func (e entry) line() string {
	return e.key + "=" + e.value + "\n"
}

// Cfg is a switch configuration document: a multimap from key to
// value. Duplicate keys are allowed and addressed by index. The
// canonical serialization is the key=value line of every entry,
// sorted lexicographically over the full line; it is the sole input
// to the cookie hash, so two documents with the same entries hash
// identically regardless of insertion order.
type Cfg struct {
	entries []entry
	cookie  Cookie
	dirty   bool
}

// Load replaces the document with the parsed key=value lines in data
// and clears the dirty flag. Lines without '=' are skipped.
func (c *Cfg) Load(data []byte) {
	c.entries = nil
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		c.insert(key, value)
	}
	c.updateCookie()
	c.dirty = false
}

// insert places the entry at its canonical position.
func (c *Cfg) insert(key, value string) {
	e := entry{key, value}
	i := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].line() > e.line()
	})
	c.entries = append(c.entries, entry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
}

// String returns the canonical serialization.
func (c *Cfg) String() string {
	var b strings.Builder
	for _, e := range c.entries {
		b.WriteString(e.line())
	}
	return b.String()
}

func (c *Cfg) Bytes() []byte {
	return []byte(c.String())
}

func (c *Cfg) updateCookie() {
	c.cookie = sha1.Sum(c.Bytes())
}

// Cookie returns the document's cookie, recomputing it first if the
// document was mutated since the last query.
func (c *Cfg) Cookie() Cookie {
	if c.dirty {
		c.updateCookie()
	}
	return c.cookie
}

func (c *Cfg) IsDirty() bool {
	return c.dirty
}

func (c *Cfg) SetDirty(dirty bool) {
	c.dirty = dirty
}

// Clone returns an independent copy of the document.
func (c *Cfg) Clone() *Cfg {
	out := &Cfg{
		entries: make([]entry, len(c.entries)),
		cookie:  c.cookie,
		dirty:   c.dirty,
	}
	copy(out.entries, c.entries)
	return out
}

func (c *Cfg) HasKey(key string) bool {
	for _, e := range c.entries {
		if e.key == key {
			return true
		}
	}
	return false
}

// PrefixKeys returns the set of keys beginning with prefix.
func (c *Cfg) PrefixKeys(prefix string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, e := range c.entries {
		if strings.HasPrefix(e.key, prefix) && !seen[e.key] {
			seen[e.key] = true
			keys = append(keys, e.key)
		}
	}
	return keys
}

// nthValue returns the idx'th value stored under key, in canonical
// order, or "" if there is no such entry.
func (c *Cfg) nthValue(idx int, key string) string {
	i := 0
	for _, e := range c.entries {
		if e.key != key {
			continue
		}
		if i == idx {
			return e.value
		}
		i++
	}
	return ""
}

func (c *Cfg) GetString(idx int, key string) string {
	return c.nthValue(idx, key)
}

func (c *Cfg) GetBool(idx int, key string) bool {
	return c.nthValue(idx, key) == "true"
}

func (c *Cfg) GetInt(idx int, key string) int {
	v, err := strconv.Atoi(c.nthValue(idx, key))
	if err != nil {
		return 0
	}
	return v
}

// GetVlan returns the VLAN id stored under key, or -1 when the value
// is absent, unparsable or outside [0, 4095].
func (c *Cfg) GetVlan(idx int, key string) int {
	v, err := strconv.Atoi(c.nthValue(idx, key))
	if err != nil || v < 0 || v > 4095 {
		return -1
	}
	return v
}

func (c *Cfg) SetString(key, value string) {
	c.AddEntry(key, value)
}

func (c *Cfg) SetInt(key string, value int) {
	c.AddEntry(key, strconv.Itoa(value))
}

func (c *Cfg) SetBool(key string, value bool) {
	c.AddEntry(key, boolValue(value))
}

// SetVlan stores a VLAN id; values outside [0, 4095] are ignored.
func (c *Cfg) SetVlan(key string, value int) {
	if value < 0 || value > 4095 {
		return
	}
	c.AddEntry(key, strconv.Itoa(value))
}

// AddEntry appends the pair, permitting duplicates. Keys may not
// contain '=' or newlines; values may not contain newlines.
func (c *Cfg) AddEntry(key, value string) {
	if key == "" || strings.ContainsAny(key, "=\n") || strings.Contains(value, "\n") {
		log.Warnf("dropping malformed config entry %q", key)
		return
	}
	c.insert(key, value)
	c.dirty = true
}

// DelEntry removes the first entry matching both key and value.
func (c *Cfg) DelEntry(key, value string) {
	for i, e := range c.entries {
		if e.key == key && e.value == value {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			c.dirty = true
			return
		}
	}
}

func (c *Cfg) DelIntEntry(key string, value int) {
	c.DelEntry(key, strconv.Itoa(value))
}

func (c *Cfg) DelBoolEntry(key string, value bool) {
	c.DelEntry(key, boolValue(value))
}

func boolValue(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
