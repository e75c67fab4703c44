package acl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/examples"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
)

// newTestTable registers a Server object with two accounts and an empty
// Test Object, and returns the table plus the server instance IDs.
func newTestTable(t *testing.T) (*Table, dm.InstanceID, dm.InstanceID) {
	t.Helper()

	registry := dm.NewRegistry()
	srv := server.New()
	iids := make([]dm.InstanceID, 0, 2)
	for _, ssid := range []dm.SSID{1, 2} {
		iid, err := srv.AddInstance(server.Instance{
			SSID:             ssid,
			Lifetime:         time.Minute,
			DefaultMinPeriod: server.NotSet,
			DefaultMaxPeriod: server.NotSet,
			DisableTimeout:   server.NotSet,
			Binding:          server.BindingUDP,
		}, dm.IIDInvalid)
		require.NoError(t, err)
		iids = append(iids, iid)
	}
	require.NoError(t, registry.Register(srv))
	require.NoError(t, registry.Register(examples.NewTestObject()))

	table, err := New(registry)
	require.NoError(t, err)
	require.NoError(t, registry.Register(table))
	return table, iids[0], iids[1]
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilRegistry)
}

func TestSetAndGet(t *testing.T) {
	table, first, second := newTestTable(t)

	require.NoError(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessRead))
	require.NoError(t, table.SetACL(dm.ObjectServer, second, 2, dm.AccessRead))
	require.NoError(t, table.SetACL(examples.TestObjectID, dm.IIDInvalid, 1, dm.AccessCreate))

	assert.Equal(t, dm.AccessRead, table.GetACL(dm.ObjectServer, first, 1))
	assert.Equal(t, dm.AccessRead, table.GetACL(dm.ObjectServer, second, 2))
	assert.Equal(t, dm.AccessCreate, table.GetACL(examples.TestObjectID, dm.IIDInvalid, 1))
	assert.Equal(t, dm.AccessNone, table.GetACL(dm.ObjectServer, first, 2))

	entries := table.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{ObjectID: dm.ObjectServer, InstanceID: first, SSID: 1, Mask: dm.AccessRead}, entries[0])
	assert.Equal(t, examples.TestObjectID, entries[2].ObjectID)
	assert.Equal(t, dm.IIDInvalid, entries[2].InstanceID)

	assert.Len(t, table.Instances(), 3, "one instance per target")
}

func TestSetACLMultipleSubjects(t *testing.T) {
	table, first, _ := newTestTable(t)

	require.NoError(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessRead))
	require.NoError(t, table.SetACL(dm.ObjectServer, first, 3, dm.AccessRead|dm.AccessWrite))
	assert.Len(t, table.Instances(), 1)

	require.NoError(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessNone))
	assert.Equal(t, dm.AccessNone, table.GetACL(dm.ObjectServer, first, 1))
	assert.Len(t, table.Instances(), 1)

	require.NoError(t, table.SetACL(dm.ObjectServer, first, 3, dm.AccessNone))
	assert.Empty(t, table.Instances(), "empty target is dropped")
	assert.Empty(t, table.Entries())
}

func TestSetACLRejects(t *testing.T) {
	table, first, _ := newTestTable(t)

	tests := []struct {
		name    string
		oid     dm.ObjectID
		iid     dm.InstanceID
		ssid    dm.SSID
		mask    dm.AccessMask
		wantErr error
	}{
		{"unregistered object", 3, dm.IIDInvalid, 1, dm.AccessCreate, dm.ErrObjectNotFound},
		{"missing instance", dm.ObjectServer, 42, 1, dm.AccessRead, dm.ErrInstanceNotFound},
		{"bootstrap subject", dm.ObjectServer, first, dm.SSIDBootstrap, dm.AccessRead, ErrInvalidSSID},
		{"undefined bits", dm.ObjectServer, first, 1, 0x40, ErrInvalidMask},
		{"create on instance", dm.ObjectServer, first, 1, dm.AccessCreate, ErrInvalidMask},
		{"read on wildcard", examples.TestObjectID, dm.IIDInvalid, 1, dm.AccessRead, ErrInvalidMask},
		{"security object", dm.ObjectSecurity, dm.IIDInvalid, 1, dm.AccessCreate, ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.SetACL(tt.oid, tt.iid, tt.ssid, tt.mask)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, table.Entries())
}

func TestAllowed(t *testing.T) {
	table, first, second := newTestTable(t)

	require.NoError(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessRead))
	require.NoError(t, table.SetACL(dm.ObjectServer, second, dm.SSIDAny, dm.AccessRead|dm.AccessWrite))
	require.NoError(t, table.SetACL(examples.TestObjectID, dm.IIDInvalid, 1, dm.AccessCreate))

	assert.True(t, table.Allowed(1, dm.ObjectServer, first, dm.AccessRead))
	assert.False(t, table.Allowed(1, dm.ObjectServer, first, dm.AccessWrite))
	assert.False(t, table.Allowed(2, dm.ObjectServer, first, dm.AccessRead))

	assert.True(t, table.Allowed(2, dm.ObjectServer, second, dm.AccessWrite), "default entry applies")
	assert.True(t, table.Allowed(1, examples.TestObjectID, dm.IIDInvalid, dm.AccessCreate))
	assert.False(t, table.Allowed(2, examples.TestObjectID, dm.IIDInvalid, dm.AccessCreate))

	aiid := table.Instances()[0]
	require.NoError(t, table.WriteResource(aiid, ResOwner, int64(2)))
	assert.True(t, table.Allowed(2, dm.ObjectServer, first, dm.AccessDelete), "owner holds the instance")
	assert.False(t, table.Allowed(2, dm.ObjectServer, first, dm.AccessCreate))
}

func TestObjectResources(t *testing.T) {
	table, first, _ := newTestTable(t)
	require.NoError(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessRead))

	aiid := table.Instances()[0]
	oid, err := table.ReadResource(aiid, ResObjectID)
	require.NoError(t, err)
	assert.Equal(t, int64(dm.ObjectServer), oid)

	iid, err := table.ReadResource(aiid, ResInstanceID)
	require.NoError(t, err)
	assert.Equal(t, int64(first), iid)

	owner, err := table.ReadResource(aiid, ResOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(dm.SSIDBootstrap), owner)

	raw, err := table.ReadResource(aiid, ResACL)
	require.NoError(t, err)
	acl := raw.(map[dm.SSID]dm.AccessMask)
	acl[1] = dm.AccessFull
	assert.Equal(t, dm.AccessRead, table.GetACL(dm.ObjectServer, first, 1), "read returns a copy")

	assert.ErrorIs(t, table.WriteResource(aiid, ResObjectID, int64(4)), dm.ErrMethodNotAllowed)
	_, err = table.CreateInstance(dm.IIDInvalid)
	assert.ErrorIs(t, err, dm.ErrMethodNotAllowed)

	require.NoError(t, table.DeleteInstance(aiid))
	assert.Equal(t, dm.AccessNone, table.GetACL(dm.ObjectServer, first, 1))
	assert.ErrorIs(t, table.DeleteInstance(aiid), dm.ErrInstanceNotFound)
}

func TestRemoveTargetAndSubject(t *testing.T) {
	table, first, second := newTestTable(t)
	require.NoError(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessRead))
	require.NoError(t, table.SetACL(dm.ObjectServer, second, 1, dm.AccessRead))
	require.NoError(t, table.SetACL(dm.ObjectServer, second, 2, dm.AccessRead))

	table.RemoveTarget(dm.ObjectServer, first)
	assert.Len(t, table.Entries(), 2)

	table.RemoveSubject(1)
	entries := table.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, dm.SSID(2), entries[0].SSID)
}

func TestDelete(t *testing.T) {
	var nilTable *Table
	assert.NotPanics(t, nilTable.Delete)

	table, first, _ := newTestTable(t)
	require.NoError(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessRead))

	table.Delete()
	table.Delete()
	assert.Empty(t, table.Entries())
	assert.ErrorIs(t, table.SetACL(dm.ObjectServer, first, 1, dm.AccessRead), ErrTableDeleted)
}
