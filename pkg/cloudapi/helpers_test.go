package cloudapi_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sre-norns/cloudapi/pkg/vmapi"
)

// resign signs payload the way continuation tokens are signed.
func resign(t *testing.T, secret, payload string) string {
	t.Helper()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return payload + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

type fakeClient struct {
	mu      sync.Mutex
	vms     []vmapi.Vm
	err     error
	block   bool
	calls   int
	queries []vmapi.ListVmsInput
}

func (c *fakeClient) ListVms(ctx context.Context, query vmapi.ListVmsInput) ([]vmapi.Vm, error) {
	c.mu.Lock()
	c.calls++
	c.queries = append(c.queries, query)
	c.mu.Unlock()

	if c.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", vmapi.ErrUnavailable, ctx.Err())
	}
	if c.err != nil {
		return nil, c.err
	}

	result := []vmapi.Vm{}
	for _, vm := range c.vms {
		if query.Matches(vm) {
			result = append(result, vm)
		}
	}
	return result, nil
}

func (c *fakeClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testUUID(i int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
}

func testVM(i int, state string) vmapi.Vm {
	return vmapi.Vm{
		UUID:            testUUID(i),
		Alias:           fmt.Sprintf("vm%d", i),
		OwnerUUID:       "acct1",
		Brand:           "joyent",
		State:           state,
		RAM:             512,
		CreateTimestamp: testCreated.Add(time.Duration(i%3) * time.Minute),
		LastModified:    testCreated,
	}
}
