package switchmgr

// Methods read and change the local copy of the switch configuration
// document. Changes are only pushed on calls to Commit. Callers must
// not yield between a chain of modifications and its Commit, as other
// handlers modify (and possibly commit) the same local document.
//
// Commit takes a callback invoked with a boolean signaling whether
// the changes were successfully pushed down to the switch.
// Successive commits taking place before the receipt of an ACK are
// made on top of each other, meaning that later commits will fail if
// an earlier commit does.

import (
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/util"
)

// Sender pushes a marshaled management message to the switch. A
// non-blocking sender identifies its would-block errors through
// WouldBlock; Commit retries those briefly for fragment runs.
type Sender interface {
	SendOfmp(msg util.Message) error
	WouldBlock(err error) bool
}

type commitInfo struct {
	cfg       *Cfg
	cookie    Cookie
	oldCookie Cookie
	callback  func(bool)
}

// SwitchMgr tracks the configuration document of one
// management-capable switch. The switch holds the authoritative copy;
// the cookie embedded in each commit is a compare-and-swap token so
// concurrent committers cannot silently clobber each other.
type SwitchMgr struct {
	mgmtId uint64
	sender Sender
	lg     *log.Entry

	// Mapping of datapath/management ids to name
	portNames map[uint64]string

	// Mapping of management id to system UUID
	mgmtUUIDs map[uint64]uuid.UUID

	// Mapping of datapath id to list of network UUIDs
	netUUIDs map[uint64][]uuid.UUID

	// Mapping of vif name to its details
	vifs map[string]ofmp.VifDetails

	globalCfg    *Cfg
	globalCookie Cookie

	localCfg   *Cfg
	lastCommit *Cfg

	capabilities *Cfg

	xid     uint32
	commits map[uint32]*commitInfo
}

func New(mgmtId uint64, sender Sender) *SwitchMgr {
	return &SwitchMgr{
		mgmtId:       mgmtId,
		sender:       sender,
		lg:           log.WithField("mgmt", mgmtId),
		portNames:    make(map[uint64]string),
		mgmtUUIDs:    make(map[uint64]uuid.UUID),
		netUUIDs:     make(map[uint64][]uuid.UUID),
		vifs:         make(map[string]ofmp.VifDetails),
		globalCfg:    new(Cfg),
		localCfg:     new(Cfg),
		lastCommit:   new(Cfg),
		capabilities: new(Cfg),
		commits:      make(map[uint32]*commitInfo),
	}
}

func (s *SwitchMgr) MgmtId() uint64 {
	return s.mgmtId
}

func (s *SwitchMgr) SetCapabilities(cap *Cfg) {
	s.capabilities = cap
}

func (s *SwitchMgr) Capabilities() *Cfg {
	return s.capabilities
}

// Revert clears local changes back to the last committed state.
func (s *SwitchMgr) Revert() {
	s.localCfg = s.lastCommit.Clone()
}

// IsDirty just says whether local_cfg doesn't match the last
// acceptance, not whether a commit is needed: past commits may not
// have been acked yet.
func (s *SwitchMgr) IsDirty() bool {
	return s.localCfg.IsDirty()
}

func (s *SwitchMgr) HasKey(key string) bool           { return s.localCfg.HasKey(key) }
func (s *SwitchMgr) PrefixKeys(p string) []string     { return s.localCfg.PrefixKeys(p) }
func (s *SwitchMgr) GetInt(i int, k string) int       { return s.localCfg.GetInt(i, k) }
func (s *SwitchMgr) GetBool(i int, k string) bool     { return s.localCfg.GetBool(i, k) }
func (s *SwitchMgr) GetString(i int, k string) string { return s.localCfg.GetString(i, k) }
func (s *SwitchMgr) GetVlan(i int, k string) int      { return s.localCfg.GetVlan(i, k) }

func (s *SwitchMgr) SetInt(k string, v int)        { s.localCfg.SetInt(k, v) }
func (s *SwitchMgr) SetBool(k string, v bool)      { s.localCfg.SetBool(k, v) }
func (s *SwitchMgr) SetString(k, v string)         { s.localCfg.SetString(k, v) }
func (s *SwitchMgr) SetVlan(k string, v int)       { s.localCfg.SetVlan(k, v) }
func (s *SwitchMgr) DelEntry(k, v string)          { s.localCfg.DelEntry(k, v) }
func (s *SwitchMgr) DelIntEntry(k string, v int)   { s.localCfg.DelIntEntry(k, v) }
func (s *SwitchMgr) DelBoolEntry(k string, v bool) { s.localCfg.DelBoolEntry(k, v) }

func (s *SwitchMgr) nextXid() uint32 {
	xid := s.xid
	s.xid++
	return xid
}

// Commit snapshots the local document and pushes it to the switch as
// a CONFIG_UPDATE carrying the cookie of the version the changes were
// based on. The callback fires when the matching ack arrives; if the
// switch manager is torn down first it never fires, and callers must
// tolerate that.
func (s *SwitchMgr) Commit(cb func(bool)) error {
	xid := s.nextXid()
	info := &commitInfo{
		cfg:       s.localCfg.Clone(),
		oldCookie: s.lastCommit.Cookie(),
		callback:  cb,
	}
	info.cookie = info.cfg.Cookie()
	s.commits[xid] = info

	update := ofmp.NewConfigUpdate(ofmp.Cookie(info.oldCookie), info.cfg.Bytes())
	update.Header.Xid = xid

	if err := s.sendOfmpMsg(update); err != nil {
		delete(s.commits, xid)
		return err
	}

	s.lg.Debugf("committing change %d %s", xid, info.cfg.String())
	s.lastCommit = s.localCfg.Clone()
	return nil
}

// sendOfmpMsg transmits msg, splitting it across extended-data frames
// when it does not fit one OpenFlow frame.
func (s *SwitchMgr) sendOfmpMsg(msg util.Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if !ofmp.NeedsFragmenting(data) {
		return s.sender.SendOfmp(msg)
	}

	frags, err := ofmp.Fragment(data)
	if err != nil {
		return err
	}
	for _, frag := range frags {
		for i := 0; ; i++ {
			err := s.sender.SendOfmp(frag)
			if err == nil {
				break
			}
			if s.sender.WouldBlock(err) && i < 10 {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			s.lg.Warnf("send of extended data failed: %v", err)
			return err
		}
	}
	return nil
}

// SetConfig installs cfg as the authoritative switch configuration.
// If local changes are pending they are preserved; a clean local copy
// follows the new global.
func (s *SwitchMgr) SetConfig(cfg *Cfg) {
	s.globalCfg = cfg.Clone()
	s.globalCookie = s.globalCfg.Cookie()
	s.globalCfg.SetDirty(false) // just in case

	s.lg.Debugf("setting new configuration")

	if !s.localCfg.IsDirty() {
		s.localCfg = s.globalCfg.Clone()
		s.lastCommit = s.globalCfg.Clone()
		return
	}

	if s.lastCommit.Cookie() == s.globalCookie {
		s.lg.Debugf("last matches global")
		if s.localCfg.Cookie() == s.globalCookie {
			s.lg.Debugf("local matches global")
			s.localCfg.SetDirty(false)
		} else {
			s.lg.Debugf("local doesn't match global")
		}
	} else {
		s.lg.Debugf("last doesn't match global")
	}
}

// HandleConfigAck resolves the pending commit matching the ack's xid.
func (s *SwitchMgr) HandleConfigAck(ack *ofmp.ConfigUpdateAck) {
	xid := ack.Header.Xid
	s.lg.Debugf("processing config ack %d", xid)
	info, ok := s.commits[xid]
	if !ok {
		s.lg.Warnf("commit %d not found", xid)
		return
	}

	if ack.Success() {
		switch {
		case info.cookie != Cookie(ack.Cookie):
			s.lg.Warnf("successful ack has mismatched cookie")
		case info.oldCookie != s.globalCookie:
			s.lg.Warnf("successful ack not matching global")
		default:
			s.SetConfig(info.cfg)
		}
	} else {
		s.lg.Debugf("update failed, reverting to global")
		s.localCfg = s.globalCfg.Clone()
		s.lastCommit = s.globalCfg.Clone()
	}

	if info.callback != nil {
		info.callback(ack.Success())
	}
	delete(s.commits, xid)
}

// HandleResourcesUpdate replaces the resource maps wholesale.
func (s *SwitchMgr) HandleResourcesUpdate(r *ofmp.ResourcesUpdate) {
	s.portNames = r.PortNames
	s.mgmtUUIDs = r.MgmtUUIDs
	s.netUUIDs = r.NetUUIDs
	s.vifs = r.Vifs
}

func (s *SwitchMgr) PortName(dpid uint64) (string, bool) {
	name, ok := s.portNames[dpid]
	return name, ok
}

func (s *SwitchMgr) PortNames() map[uint64]string {
	return s.portNames
}

func (s *SwitchMgr) SystemUUID(mgmtId uint64) (uuid.UUID, bool) {
	id, ok := s.mgmtUUIDs[mgmtId]
	return id, ok
}

func (s *SwitchMgr) NetworkUUIDs(dpid uint64) ([]uuid.UUID, bool) {
	nets, ok := s.netUUIDs[dpid]
	return nets, ok
}

func (s *SwitchMgr) VifDetails(name string) (ofmp.VifDetails, bool) {
	vif, ok := s.vifs[name]
	return vif, ok
}

func PortIsVirtual(name string) bool {
	return strings.HasPrefix(name, "vif") || strings.HasPrefix(name, "tap")
}

// PendingCommits reports how many commits await their ack.
func (s *SwitchMgr) PendingCommits() int {
	return len(s.commits)
}

// GlobalCookie returns the cookie of the last configuration
// authoritatively received from the switch.
func (s *SwitchMgr) GlobalCookie() Cookie {
	return s.globalCookie
}

// GlobalCfg returns the last configuration authoritatively received
// from the switch.
func (s *SwitchMgr) GlobalCfg() *Cfg {
	return s.globalCfg
}

// LocalCfg exposes the document under local mutation.
func (s *SwitchMgr) LocalCfg() *Cfg {
	return s.localCfg
}
