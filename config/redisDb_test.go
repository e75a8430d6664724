package config

import (
	"testing"
	"time"
)

// Redis is an accelerator: every helper must be a harmless no-op when no
// client was ever connected, so the service runs cacheless instead of failing.
func TestRedisHelpersWithoutClient(t *testing.T) {
	if rdb != nil {
		t.Skip("redis client connected; nothing to verify")
	}

	var dest map[string]string
	found, err := GetRedisObject("Usuario:ghost", &dest)
	if err != nil || found {
		t.Fatalf("GetRedisObject without client = (%v, %v), expected (false, nil)", found, err)
	}
	if err := SetRedisObject("Usuario:ghost", map[string]string{"a": "b"}, time.Minute); err != nil {
		t.Fatalf("SetRedisObject without client: %v", err)
	}
	if err := RemoveRedisKey("Usuario:ghost"); err != nil {
		t.Fatalf("RemoveRedisKey without client: %v", err)
	}
	if GetRedisLock() != nil {
		t.Fatal("lock client must stay nil without a redis connection")
	}
}
