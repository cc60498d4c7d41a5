package cloudsave

import (
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestClient_KeyJoinsUserClientAndPath(t *testing.T) {
	c := &Client{userID: "u1", clientID: "c1"}
	assert.Equal(t, "u1/c1/saves/slot1.sav", c.key("saves/slot1.sav"))
}

func TestToMetadata_ParsesRFC3339LocalLastModified(t *testing.T) {
	stamp := "2026-03-01T12:00:00Z"
	info := minio.ObjectInfo{
		Key: "u1/c1/saves/slot1.sav", Size: 42, ETag: "abc",
		UserMetadata: map[string]string{localLastModifiedKey: stamp},
	}
	m := toMetadata(info)
	assert.Equal(t, int64(42), m.Size)
	assert.Equal(t, "abc", m.ETag)
	want, _ := time.Parse(time.RFC3339, stamp)
	assert.True(t, m.LocalLastModified.Equal(want))
}

func TestToMetadata_MissingMetadataLeavesZeroTime(t *testing.T) {
	m := toMetadata(minio.ObjectInfo{Key: "u1/c1/saves/slot1.sav"})
	assert.True(t, m.LocalLastModified.IsZero())
}
