package bootstrap

import (
	"errors"
	"fmt"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/persistence"
	"github.com/mash-protocol/lwm2m-go/pkg/security"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
)

// Snapshot captures the server accounts and access control entries.
func (a *Agent) Snapshot() *persistence.State {
	state := &persistence.State{}
	for _, e := range a.security.Entries() {
		state.Security = append(state.Security, persistence.SecurityRecord{
			IID:             uint16(e.IID),
			SSID:            uint16(e.Instance.SSID),
			ServerURI:       e.Instance.ServerURI,
			SecurityMode:    uint8(e.Instance.SecurityMode),
			BootstrapServer: e.Instance.BootstrapServer,
		})
	}
	for _, e := range a.server.Entries() {
		state.Server = append(state.Server, persistence.ServerRecord{
			IID:              uint16(e.IID),
			SSID:             uint16(e.Instance.SSID),
			Lifetime:         e.Instance.Lifetime,
			DefaultMinPeriod: e.Instance.DefaultMinPeriod,
			DefaultMaxPeriod: e.Instance.DefaultMaxPeriod,
			DisableTimeout:   e.Instance.DisableTimeout,
			Binding:          string(e.Instance.Binding),
		})
	}
	for _, e := range a.acl.Entries() {
		state.ACL = append(state.ACL, persistence.ACLRecord{
			ObjectID:   uint16(e.ObjectID),
			InstanceID: uint16(e.InstanceID),
			SSID:       uint16(e.SSID),
			Mask:       uint16(e.Mask),
		})
	}
	return state
}

// Save writes a snapshot to the configured state path.
func (a *Agent) Save() error {
	if a.config.StatePath == "" {
		return nil
	}
	if err := persistence.NewStore(a.config.StatePath).Save(a.Snapshot()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	a.debugLog("state saved", "path", a.config.StatePath)
	return nil
}

// restore recreates instances with their saved instance IDs, then the
// access control entries that reference them. Entries for instances that
// are not persisted, such as Resource object instances, are skipped.
func (a *Agent) restore(state *persistence.State) error {
	for _, r := range state.Security {
		inst := security.Instance{
			SSID:            dm.SSID(r.SSID),
			ServerURI:       r.ServerURI,
			SecurityMode:    security.Mode(r.SecurityMode),
			BootstrapServer: r.BootstrapServer,
		}
		if _, err := a.security.AddInstance(inst, dm.InstanceID(r.IID)); err != nil {
			return fmt.Errorf("security instance %d: %w", r.IID, err)
		}
	}
	for _, r := range state.Server {
		inst := server.Instance{
			SSID:             dm.SSID(r.SSID),
			Lifetime:         r.Lifetime,
			DefaultMinPeriod: r.DefaultMinPeriod,
			DefaultMaxPeriod: r.DefaultMaxPeriod,
			DisableTimeout:   r.DisableTimeout,
			Binding:          server.Binding(r.Binding),
		}
		if _, err := a.server.AddInstance(inst, dm.InstanceID(r.IID)); err != nil {
			return fmt.Errorf("server instance %d: %w", r.IID, err)
		}
	}
	// Servers and security accounts correlate by SSID.
	for _, e := range a.server.Entries() {
		if _, _, ok := a.security.BySSID(e.Instance.SSID); !ok {
			return fmt.Errorf("server instance %d: %w: ssid %d", e.IID, ErrOrphanServer, e.Instance.SSID)
		}
	}
	for _, r := range state.ACL {
		oid, iid := dm.ObjectID(r.ObjectID), dm.InstanceID(r.InstanceID)
		err := a.acl.SetACL(oid, iid, dm.SSID(r.SSID), dm.AccessMask(r.Mask))
		if errors.Is(err, dm.ErrInstanceNotFound) {
			a.debugLog("acl target not restored", "target", dm.Path(oid, iid, dm.RIDInvalid))
			continue
		}
		if err != nil {
			return fmt.Errorf("acl %s ssid %d: %w", dm.Path(oid, iid, dm.RIDInvalid), r.SSID, err)
		}
	}
	return nil
}
